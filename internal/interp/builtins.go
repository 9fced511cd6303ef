package interp

import (
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"key-mods/internal/keys"
	"key-mods/internal/kmerr"
	"key-mods/internal/mapping"
	"key-mods/internal/task"
	"key-mods/internal/value"
)

// registerBuiltins populates Root with the native callables spec §6 lists.
func (ip *Interp) registerBuiltins() {
	define := func(name string, fn value.NativeFunc) {
		ip.Root.Define(name, value.BuiltinOf(&value.BuiltinFn{Name: name, Fn: fn}))
	}

	define("print", ip.builtinPrint)
	define("map_key", ip.builtinMapKey)
	define("sleep", ip.builtinSleep)
	define("on_window_change", ip.builtinOnWindowChange)
	define("active_window_class", ip.builtinActiveWindowClass)
	define("send", ip.builtinSend)
	define("number_to_char", ip.builtinNumberToChar)
	define("char_to_number", ip.builtinCharToNumber)
	define("execute", ip.builtinExecute)
	define("exit", ip.builtinExit)
}

func (ip *Interp) builtinPrint(_ value.Ctx, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, kmerr.New(kmerr.KindArity, "print expects 1 argument, got %d", len(args))
	}
	fmt.Println(args[0].String())
	return value.Void_(), nil
}

func (ip *Interp) builtinMapKey(_ value.Ctx, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Value{}, kmerr.New(kmerr.KindArity, "map_key expects 2 arguments, got %d", len(args))
	}
	var mods keys.ModSet
	var key keys.Code
	switch args[0].Kind {
	case value.String:
		m, k, err := keys.ParseChord(args[0].Str)
		if err != nil {
			return value.Value{}, kmerr.As(err, kmerr.KindBadKeyName)
		}
		mods, key = m, k
	case value.KeyLiteral:
		mods, key = args[0].Key.Mods, args[0].Key.Key
	default:
		return value.Value{}, kmerr.New(kmerr.KindTypeMismatch, "map_key trigger must be a String or KeyLiteral")
	}
	if args[1].Kind != value.Function {
		return value.Value{}, kmerr.New(kmerr.KindTypeMismatch, "map_key callback must be a Function")
	}
	cl := args[1].Fn
	// map_key silently replaces any existing binding, the same contract as
	// a mapping-statement's RHS overwrite (spec §9 resolves the open
	// question this way, by analogy with §4.F "overwrites are silent").
	ip.Table.InstallShorthand(mods, key, mapping.Action{Kind: mapping.BlockAction, Body: cl.Body, Env: cl.Env})
	return value.Void_(), nil
}

func (ip *Interp) builtinSleep(ctx value.Ctx, args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind != value.Number {
		return value.Value{}, kmerr.New(kmerr.KindArity, "sleep expects 1 Number argument")
	}
	if ctx.Yielder == nil {
		return value.Value{}, kmerr.New(kmerr.KindRuntimeAbort, "sleep called outside a task")
	}
	ctx.Yielder.Sleep(time.Duration(args[0].Num) * time.Millisecond)
	return value.Void_(), nil
}

func (ip *Interp) builtinOnWindowChange(_ value.Ctx, args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind != value.Function {
		return value.Value{}, kmerr.New(kmerr.KindArity, "on_window_change expects 1 Function argument")
	}
	if ip.Window == nil {
		return value.Void_(), nil
	}
	cl := args[0].Fn
	ip.Window.OnChange(func(class string) {
		ip.spawn("on_window_change", func(y *task.Yielder) {
			callEnv := cl.Env.Child()
			if len(cl.Params) > 0 {
				callEnv.Define(cl.Params[0], value.StringOf(class))
			}
			fr := &frame{}
			if _, _, err := ip.ExecBlock(cl.Body, callEnv, y, fr); err != nil {
				fmt.Fprintf(os.Stderr, "key-mods: on_window_change: %v\n", err)
			}
		})
	})
	return value.Void_(), nil
}

func (ip *Interp) builtinActiveWindowClass(_ value.Ctx, args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Value{}, kmerr.New(kmerr.KindArity, "active_window_class expects 0 arguments")
	}
	if ip.Window == nil {
		return value.Void_(), nil
	}
	class, ok := ip.Window.ActiveClass()
	if !ok {
		return value.Void_(), nil
	}
	return value.StringOf(class), nil
}

func (ip *Interp) builtinSend(_ value.Ctx, args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind != value.String {
		return value.Value{}, kmerr.New(kmerr.KindArity, "send expects 1 String argument")
	}
	toks, err := keys.ParseSequence(args[0].Str)
	if err != nil {
		return value.Value{}, kmerr.As(err, kmerr.KindBadKeyName)
	}
	if ip.Sink == nil {
		return value.Void_(), nil
	}
	if err := ip.Sink.Emit(0, toks); err != nil {
		return value.Value{}, kmerr.New(kmerr.KindRuntimeAbort, "send: %v", err)
	}
	return value.Void_(), nil
}

func (ip *Interp) builtinNumberToChar(_ value.Ctx, args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind != value.Number {
		return value.Value{}, kmerr.New(kmerr.KindArity, "number_to_char expects 1 Number argument")
	}
	r := rune(args[0].Num)
	if r < 0 || r > utf8.MaxRune || !utf8.ValidRune(r) {
		return value.Value{}, kmerr.New(kmerr.KindBadArgument, "number_to_char: %v is not a valid code point", args[0].Num)
	}
	return value.StringOf(string(r)), nil
}

func (ip *Interp) builtinCharToNumber(_ value.Ctx, args []value.Value) (value.Value, error) {
	if len(args) != 1 || args[0].Kind != value.String {
		return value.Value{}, kmerr.New(kmerr.KindArity, "char_to_number expects 1 String argument")
	}
	if args[0].Str == "" {
		return value.Value{}, kmerr.New(kmerr.KindBadArgument, "char_to_number: empty string")
	}
	r, _ := utf8.DecodeRuneInString(args[0].Str)
	return value.NumberOf(float64(r)), nil
}

// builtinExecute busy-yields rather than blocking the whole scheduler,
// since Runner.Run is a synchronous call: the actual subprocess runs on
// its own goroutine so other tasks (notably the router) keep making
// progress while this task waits on it (spec §4.H "sleep does not block
// other mappings" — execute's suspension has the same contract).
func (ip *Interp) builtinExecute(ctx value.Ctx, args []value.Value) (value.Value, error) {
	if len(args) == 0 || args[0].Kind != value.String {
		return value.Value{}, kmerr.New(kmerr.KindArity, "execute expects at least a String command")
	}
	cmdArgs := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		if a.Kind != value.String {
			return value.Value{}, kmerr.New(kmerr.KindTypeMismatch, "execute arguments must be Strings")
		}
		cmdArgs = append(cmdArgs, a.Str)
	}
	if ip.Runner == nil || ctx.Yielder == nil {
		return value.Void_(), nil
	}
	type result struct {
		out string
		ok  bool
	}
	resultCh := make(chan result, 1)
	go func() {
		out, ok := ip.Runner.Run(args[0].Str, cmdArgs)
		resultCh <- result{out, ok}
	}()
	for {
		select {
		case r := <-resultCh:
			if !r.ok {
				return value.Void_(), nil
			}
			return value.StringOf(r.out), nil
		default:
			ctx.Yielder.Yield()
		}
	}
}

func (ip *Interp) builtinExit(_ value.Ctx, args []value.Value) (value.Value, error) {
	code := 0
	if len(args) > 0 {
		if args[0].Kind != value.Number {
			return value.Value{}, kmerr.New(kmerr.KindTypeMismatch, "exit code must be a Number")
		}
		code = int(args[0].Num)
	}
	ip.Sched.Exit(code)
	panic(exitSignal{code})
}
