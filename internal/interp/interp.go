// Package interp implements the tree-walking evaluator of spec §4.D:
// expression/statement evaluation, function calls, mapping-statement
// installation, and the builtins table.
package interp

import (
	"key-mods/internal/ast"
	"key-mods/internal/keys"
	"key-mods/internal/kmerr"
	"key-mods/internal/mapping"
	"key-mods/internal/task"
	"key-mods/internal/value"
)

// Signal is a statement's control-flow outcome (spec §4.D: "Statements
// return a control signal: Continue, Return(Value), Break (reserved)").
// Continue is supplemented from original_source/ alongside Break (see
// DESIGN.md).
type Signal int

const (
	sigNone Signal = iota
	sigReturn
	sigBreak
	sigContinue
)

// Emitter is the contract behind send(); the router implements it and
// writes the events to its output sink. The interpreter only needs to hand
// it a parsed sequence.
type Emitter interface {
	Emit(mods keys.ModSet, seq []keys.SeqToken) error
}

// WindowSource is the desktop-side collaborator behind on_window_change
// and active_window_class (spec §1, out of scope beyond this interface).
type WindowSource interface {
	ActiveClass() (string, bool)
	OnChange(cb func(class string))
}

// CommandRunner executes execute()'s subprocess (spec §6), out of scope
// beyond this interface.
type CommandRunner interface {
	Run(cmd string, args []string) (string, bool)
}

// Interp holds everything shared across every task's evaluation: the root
// environment, the mapping table it mutates, the scheduler it spawns
// secondary tasks on, and the three external collaborators builtins talk
// to.
type Interp struct {
	Root  *value.Env
	Table *mapping.Table
	Sched *task.Scheduler
	Sink  Emitter
	Window WindowSource
	Runner CommandRunner

	// FuelLimit is the number of statements a single task may execute
	// before it is forced to yield (spec §4.H "bounded fuel, e.g. every
	// 1000 AST nodes"). Zero disables fuel-based preemption.
	FuelLimit int
}

// frame holds the execution counters spec §4.D/§4.H need per running
// task: the fuel budget and the return/break/continue escape depths.
// RunProgram, RunAction, and the on_window_change callback each spawn a
// new task and hand its call tree a fresh frame — these counters must not
// live on the shared Interp, since tasks suspend mid-call (e.g. inside a
// function body that calls sleep()) while a different task runs
// concurrently against the same Interp; a field shared across tasks would
// let one task's stale depth make another task's escape check pass when
// it shouldn't.
type frame struct {
	fuel      int
	funcDepth int
	loopDepth int
}

// exitSignal unwinds the current task's call stack when exit() runs;
// spawn recovers it so the task ends quietly instead of crashing the
// process (exit()'s contract is `(code?) → ⊥`, it never returns a Value).
type exitSignal struct{ code int }

func New(table *mapping.Table, sched *task.Scheduler, sink Emitter, window WindowSource, runner CommandRunner, fuelLimit int) *Interp {
	ip := &Interp{
		Root:      value.NewEnv(),
		Table:     table,
		Sched:     sched,
		Sink:      sink,
		Window:    window,
		Runner:    runner,
		FuelLimit: fuelLimit,
	}
	ip.registerBuiltins()
	return ip
}

// spawn wraps Scheduler.Spawn with the exit() recovery every interpreter
// entry point into the scheduler needs.
func (ip *Interp) spawn(name string, fn func(y *task.Yielder)) *task.Task {
	return ip.Sched.Spawn(name, func(y *task.Yielder) {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(exitSignal); !ok {
					panic(r)
				}
			}
		}()
		fn(y)
	})
}

// RunProgram evaluates a program's top-level statements as a task (so a
// top-level sleep() behaves like any other suspension point), installing
// its mapping statements into Table as it goes. onError is called (off the
// scheduler goroutine boundary — it runs in that task's goroutine, like
// everything else here) if a root statement fails; the caller typically
// logs it and exits the process.
func (ip *Interp) RunProgram(prog *ast.Program, onError func(error)) {
	ip.spawn("startup", func(y *task.Yielder) {
		fr := &frame{}
		for _, stmt := range prog.Stmts {
			sig, _, err := ip.Exec(stmt, ip.Root, y, fr)
			if err != nil {
				onError(err)
				return
			}
			if sig != sigNone {
				onError(kmerr.New(kmerr.KindRuntimeAbort, "break/continue/return not valid at top level"))
				return
			}
		}
	})
}

// RunAction dispatches a matched mapping.Action of kind BlockAction as a
// new task, per spec §4.G step 4 ("enqueue a task with the captured env and
// resume the interpreter on that block").
func (ip *Interp) RunAction(a mapping.Action, onError func(error)) {
	ip.spawn("mapping-action", func(y *task.Yielder) {
		fr := &frame{}
		if _, _, err := ip.ExecBlock(a.Body, a.Env.Child(), y, fr); err != nil {
			onError(err)
		}
	})
}

func (ip *Interp) checkFuel(y *task.Yielder, fr *frame) {
	if ip.FuelLimit <= 0 || y == nil {
		return
	}
	fr.fuel++
	if fr.fuel >= ip.FuelLimit {
		fr.fuel = 0
		y.Yield()
	}
}

// Exec evaluates one statement, returning the control signal it produced
// and, for sigReturn, the returned Value. fr is the calling task's frame —
// never shared with another task's concurrent call tree.
func (ip *Interp) Exec(stmt ast.Stmt, env *value.Env, y *task.Yielder, fr *frame) (Signal, value.Value, error) {
	ip.checkFuel(y, fr)
	switch s := stmt.(type) {
	case *ast.LetStmt:
		v, err := ip.Eval(s.Value, env, y, fr)
		if err != nil {
			return sigNone, value.Void_(), err
		}
		env.Define(s.Name, v)
		return sigNone, value.Void_(), nil

	case *ast.ExprStmt:
		_, err := ip.Eval(s.X, env, y, fr)
		return sigNone, value.Void_(), err

	case *ast.BlockStmt:
		return ip.ExecBlock(s, env.Child(), y, fr)

	case *ast.IfStmt:
		return ip.execIf(s, env, y, fr)

	case *ast.ForStmt:
		return ip.execFor(s, env, y, fr)

	case *ast.ReturnStmt:
		if fr.funcDepth <= 0 {
			line, col := s.Pos()
			return sigNone, value.Void_(), kmerr.NewAt(kmerr.KindRuntimeAbort, line, col, "return outside function")
		}
		v := value.Void_()
		if s.Value != nil {
			rv, err := ip.Eval(s.Value, env, y, fr)
			if err != nil {
				return sigNone, value.Void_(), err
			}
			v = rv
		}
		return sigReturn, v, nil

	case *ast.BreakStmt:
		if fr.loopDepth <= 0 {
			line, col := s.Pos()
			return sigNone, value.Void_(), kmerr.NewAt(kmerr.KindRuntimeAbort, line, col, "break outside loop")
		}
		return sigBreak, value.Void_(), nil

	case *ast.ContinueStmt:
		if fr.loopDepth <= 0 {
			line, col := s.Pos()
			return sigNone, value.Void_(), kmerr.NewAt(kmerr.KindRuntimeAbort, line, col, "continue outside loop")
		}
		return sigContinue, value.Void_(), nil

	case *ast.MappingStmt:
		return sigNone, value.Void_(), ip.execMapping(s, env)

	default:
		line, col := stmt.Pos()
		return sigNone, value.Void_(), kmerr.NewAt(kmerr.KindRuntimeAbort, line, col, "unhandled statement %T", stmt)
	}
}

// ExecBlock runs a block's statements in order, stopping and propagating
// the first non-None signal.
func (ip *Interp) ExecBlock(b *ast.BlockStmt, env *value.Env, y *task.Yielder, fr *frame) (Signal, value.Value, error) {
	for _, stmt := range b.Stmts {
		sig, v, err := ip.Exec(stmt, env, y, fr)
		if err != nil {
			return sigNone, value.Void_(), err
		}
		if sig != sigNone {
			return sig, v, nil
		}
	}
	return sigNone, value.Void_(), nil
}

func (ip *Interp) execIf(s *ast.IfStmt, env *value.Env, y *task.Yielder, fr *frame) (Signal, value.Value, error) {
	cond, err := ip.Eval(s.Cond, env, y, fr)
	if err != nil {
		return sigNone, value.Void_(), err
	}
	if cond.Truthy() {
		return ip.ExecBlock(s.Then, env.Child(), y, fr)
	}
	if s.ElseIf != nil {
		return ip.execIf(s.ElseIf, env, y, fr)
	}
	if s.Else != nil {
		return ip.ExecBlock(s.Else, env.Child(), y, fr)
	}
	return sigNone, value.Void_(), nil
}

func (ip *Interp) execFor(s *ast.ForStmt, env *value.Env, y *task.Yielder, fr *frame) (Signal, value.Value, error) {
	loopEnv := env.Child()
	if s.Init != nil {
		if _, _, err := ip.Exec(s.Init, loopEnv, y, fr); err != nil {
			return sigNone, value.Void_(), err
		}
	}
	fr.loopDepth++
	defer func() { fr.loopDepth-- }()
	for {
		if s.Cond != nil {
			cv, err := ip.Eval(s.Cond, loopEnv, y, fr)
			if err != nil {
				return sigNone, value.Void_(), err
			}
			if !cv.Truthy() {
				break
			}
		}
		sig, v, err := ip.ExecBlock(s.Body, loopEnv.Child(), y, fr)
		if err != nil {
			return sigNone, value.Void_(), err
		}
		if sig == sigBreak {
			break
		}
		if sig == sigReturn {
			return sig, v, nil
		}
		if s.Post != nil {
			if _, _, err := ip.Exec(s.Post, loopEnv, y, fr); err != nil {
				return sigNone, value.Void_(), err
			}
		}
	}
	return sigNone, value.Void_(), nil
}

func (ip *Interp) execMapping(s *ast.MappingStmt, env *value.Env) error {
	// A bare-chord RHS (a::b;) needs a distinct Action per triggering
	// state — Down alone must emit only the target's Down, Up alone only
	// its Up, or a single KEY_A down/up pair would turn into four KEY_B
	// edges instead of two. install_shorthand's "one action for all three
	// states" contract only fits the string/block RHS forms below, so this
	// case installs each state's Chord directly instead.
	if s.RHSChord != nil {
		target := s.RHSChord.Key
		mods := s.RHSChord.Mods
		actions := map[keys.State]mapping.Action{
			keys.Down:   {Kind: mapping.StaticEmit, Mods: mods, Seq: []keys.SeqToken{{Code: target, States: []keys.State{keys.Down}}}},
			keys.Up:     {Kind: mapping.StaticEmit, Mods: mods, Seq: []keys.SeqToken{{Code: target, States: []keys.State{keys.Up}}}},
			keys.Repeat: {Kind: mapping.StaticEmit, Mods: mods, Seq: []keys.SeqToken{{Code: target, States: []keys.State{keys.Down}}}},
		}
		for st, a := range actions {
			ip.Table.Install(keys.Chord{Mods: s.Mods, Key: s.Key, State: st}, a)
		}
		return nil
	}
	action, err := ip.mappingAction(s, env)
	if err != nil {
		return err
	}
	ip.Table.InstallShorthand(s.Mods, s.Key, action)
	return nil
}

func (ip *Interp) mappingAction(s *ast.MappingStmt, env *value.Env) (mapping.Action, error) {
	switch {
	case s.RHSStr != nil:
		lit, ok := s.RHSStr.(*ast.StringLit)
		if !ok {
			line, col := s.RHSStr.Pos()
			return mapping.Action{}, kmerr.NewAt(kmerr.KindRuntimeAbort, line, col, "mapping string RHS must be a literal")
		}
		seq, err := keys.ParseSequence(lit.Value)
		if err != nil {
			return mapping.Action{}, kmerr.As(err, kmerr.KindBadKeyName)
		}
		return mapping.Action{Kind: mapping.StaticEmit, Seq: seq}, nil
	case s.RHSBlock != nil:
		return mapping.Action{Kind: mapping.BlockAction, Body: s.RHSBlock, Env: env}, nil
	}
	return mapping.Action{}, kmerr.New(kmerr.KindRuntimeAbort, "mapping statement has no right-hand side")
}

// Eval evaluates an expression to a Value.
func (ip *Interp) Eval(expr ast.Expr, env *value.Env, y *task.Yielder, fr *frame) (value.Value, error) {
	switch n := expr.(type) {
	case *ast.NumberLit:
		return value.NumberOf(n.Value), nil
	case *ast.StringLit:
		return value.StringOf(n.Value), nil
	case *ast.BoolLit:
		return value.BoolOf(n.Value), nil
	case *ast.ChordLit:
		return value.KeyLiteralOf(keys.Chord{Mods: n.Mods, Key: n.Key, State: keys.Down}), nil
	case *ast.Identifier:
		v, ok := env.Get(n.Name)
		if !ok {
			return value.Value{}, kmerr.NewAt(kmerr.KindUnboundVariable, n.Line, n.Col, "undefined variable: %s", n.Name)
		}
		return v, nil
	case *ast.Lambda:
		return value.FunctionOf(&value.Closure{Params: n.Params, Body: n.Body, Env: env}), nil
	case *ast.Assign:
		v, err := ip.Eval(n.Value, env, y, fr)
		if err != nil {
			return value.Value{}, err
		}
		if err := env.Assign(n.Name, v); err != nil {
			return value.Value{}, kmerr.As(err, kmerr.KindUnboundVariable)
		}
		return v, nil
	case *ast.Unary:
		return ip.evalUnary(n, env, y, fr)
	case *ast.Binary:
		return ip.evalBinary(n, env, y, fr)
	case *ast.Call:
		return ip.evalCall(n, env, y, fr)
	default:
		line, col := expr.Pos()
		return value.Value{}, kmerr.NewAt(kmerr.KindRuntimeAbort, line, col, "unhandled expression %T", expr)
	}
}

func (ip *Interp) evalUnary(n *ast.Unary, env *value.Env, y *task.Yielder, fr *frame) (value.Value, error) {
	v, err := ip.Eval(n.Right, env, y, fr)
	if err != nil {
		return value.Value{}, err
	}
	if n.Op != "-" {
		return value.Value{}, kmerr.NewAt(kmerr.KindRuntimeAbort, n.Line, n.Col, "unknown unary operator %q", n.Op)
	}
	if v.Kind != value.Number {
		return value.Value{}, kmerr.NewAt(kmerr.KindTypeMismatch, n.Line, n.Col, "unary - requires a Number")
	}
	return value.NumberOf(-v.Num), nil
}

func (ip *Interp) evalBinary(n *ast.Binary, env *value.Env, y *task.Yielder, fr *frame) (value.Value, error) {
	if n.Op == "&&" || n.Op == "||" {
		l, err := ip.Eval(n.Left, env, y, fr)
		if err != nil {
			return value.Value{}, err
		}
		if n.Op == "&&" && !l.Truthy() {
			return l, nil
		}
		if n.Op == "||" && l.Truthy() {
			return l, nil
		}
		return ip.Eval(n.Right, env, y, fr)
	}

	l, err := ip.Eval(n.Left, env, y, fr)
	if err != nil {
		return value.Value{}, err
	}
	r, err := ip.Eval(n.Right, env, y, fr)
	if err != nil {
		return value.Value{}, err
	}

	switch n.Op {
	case "+":
		return evalPlus(l, r, n.Line, n.Col)
	case "-", "*", "/", "%":
		return evalArith(n.Op, l, r, n.Line, n.Col)
	case "==":
		return value.BoolOf(l.Equal(r)), nil
	case "!=":
		return value.BoolOf(!l.Equal(r)), nil
	case "<", "<=", ">", ">=":
		return evalCompare(n.Op, l, r, n.Line, n.Col)
	default:
		return value.Value{}, kmerr.NewAt(kmerr.KindRuntimeAbort, n.Line, n.Col, "unknown operator %q", n.Op)
	}
}

// evalPlus implements spec §4.A's `+` coercion rule: numeric addition for
// two Numbers, string concatenation (with shortest round-trip decimal
// formatting of any Number operand) if either side is a String, else
// TypeMismatch.
func evalPlus(l, r value.Value, line, col int) (value.Value, error) {
	if l.Kind == value.Number && r.Kind == value.Number {
		return value.NumberOf(l.Num + r.Num), nil
	}
	if l.Kind == value.String || r.Kind == value.String {
		return value.StringOf(l.String() + r.String()), nil
	}
	return value.Value{}, kmerr.NewAt(kmerr.KindTypeMismatch, line, col, "+ requires two Numbers or a String operand")
}

func evalArith(op string, l, r value.Value, line, col int) (value.Value, error) {
	if l.Kind != value.Number || r.Kind != value.Number {
		return value.Value{}, kmerr.NewAt(kmerr.KindTypeMismatch, line, col, "%s requires two Numbers", op)
	}
	switch op {
	case "-":
		return value.NumberOf(l.Num - r.Num), nil
	case "*":
		return value.NumberOf(l.Num * r.Num), nil
	case "/":
		return value.NumberOf(l.Num / r.Num), nil
	case "%":
		return value.NumberOf(float64(int64(l.Num) % int64(r.Num))), nil
	}
	panic("unreachable")
}

func evalCompare(op string, l, r value.Value, line, col int) (value.Value, error) {
	if l.Kind != value.Number || r.Kind != value.Number {
		return value.Value{}, kmerr.NewAt(kmerr.KindTypeMismatch, line, col, "%s requires two Numbers", op)
	}
	var res bool
	switch op {
	case "<":
		res = l.Num < r.Num
	case "<=":
		res = l.Num <= r.Num
	case ">":
		res = l.Num > r.Num
	case ">=":
		res = l.Num >= r.Num
	}
	return value.BoolOf(res), nil
}

func (ip *Interp) evalCall(n *ast.Call, env *value.Env, y *task.Yielder, fr *frame) (value.Value, error) {
	callee, err := ip.Eval(n.Callee, env, y, fr)
	if err != nil {
		return value.Value{}, err
	}
	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := ip.Eval(a, env, y, fr)
		if err != nil {
			return value.Value{}, err
		}
		args[i] = v
	}
	switch callee.Kind {
	case value.Builtin:
		return callee.Native.Fn(value.Ctx{Yielder: y}, args)
	case value.Function:
		return ip.callClosure(callee.Fn, args, y, fr, n.Line, n.Col)
	default:
		return value.Value{}, kmerr.NewAt(kmerr.KindRuntimeAbort, n.Line, n.Col, "value is not callable")
	}
}

func (ip *Interp) callClosure(cl *value.Closure, args []value.Value, y *task.Yielder, fr *frame, line, col int) (value.Value, error) {
	if len(args) != len(cl.Params) {
		return value.Value{}, kmerr.NewAt(kmerr.KindArity, line, col, "expected %d arguments, got %d", len(cl.Params), len(args))
	}
	callEnv := cl.Env.Child()
	for i, p := range cl.Params {
		callEnv.Define(p, args[i])
	}
	fr.funcDepth++
	defer func() { fr.funcDepth-- }()
	sig, v, err := ip.ExecBlock(cl.Body, callEnv, y, fr)
	if err != nil {
		return value.Value{}, err
	}
	if sig == sigReturn {
		return v, nil
	}
	return value.Void_(), nil
}
