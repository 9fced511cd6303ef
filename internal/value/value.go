// Package value implements the dynamic Value representation and the
// lexically-scoped Environment described in spec §3/§4.A.
package value

import (
	"fmt"
	"strconv"

	"key-mods/internal/ast"
	"key-mods/internal/keys"
	"key-mods/internal/task"
)

// Kind tags a Value's active representation.
type Kind int

const (
	Void Kind = iota
	Number
	String
	Bool
	KeyLiteral
	KeySequence
	Function
	Builtin
)

func (k Kind) String() string {
	switch k {
	case Void:
		return "Void"
	case Number:
		return "Number"
	case String:
		return "String"
	case Bool:
		return "Bool"
	case KeyLiteral:
		return "KeyLiteral"
	case KeySequence:
		return "KeySequence"
	case Function:
		return "Function"
	case Builtin:
		return "Builtin"
	default:
		return "?"
	}
}

// Ctx carries per-call context a builtin may need that isn't part of its
// argument list: the Yielder of the task it is running on, so builtins
// like sleep/execute can suspend without the interpreter threading a
// separate parameter through every call site.
type Ctx struct {
	Yielder *task.Yielder
}

// NativeFunc is the Go implementation behind a Builtin value.
type NativeFunc func(ctx Ctx, args []Value) (Value, error)

// Closure is a user-defined function: parameter names, its body, and the
// environment live at its definition site (spec §3 "Function").
type Closure struct {
	Params   []string
	Variadic bool // reserved for future use; the grammar has no variadic params today
	Body     *ast.BlockStmt
	Env      *Env
	Name     string // best-effort, for diagnostics only
}

// Value is the tagged variant described in spec §3.
type Value struct {
	Kind Kind

	Num float64
	Str string
	Flag bool

	Key keys.Chord
	Seq []keys.SeqToken

	Fn     *Closure
	Native *BuiltinFn
}

// BuiltinFn is a reference to a native callable (spec §3 "Builtin").
type BuiltinFn struct {
	Name string
	Fn   NativeFunc
}

func Void_() Value               { return Value{Kind: Void} }
func NumberOf(n float64) Value   { return Value{Kind: Number, Num: n} }
func StringOf(s string) Value    { return Value{Kind: String, Str: s} }
func BoolOf(b bool) Value        { return Value{Kind: Bool, Flag: b} }
func KeyLiteralOf(c keys.Chord) Value { return Value{Kind: KeyLiteral, Key: c} }
func KeySequenceOf(s []keys.SeqToken) Value { return Value{Kind: KeySequence, Seq: s} }
func FunctionOf(c *Closure) Value { return Value{Kind: Function, Fn: c} }
func BuiltinOf(b *BuiltinFn) Value { return Value{Kind: Builtin, Native: b} }

// Truthy implements the rules of spec §4.A.
func (v Value) Truthy() bool {
	switch v.Kind {
	case Bool:
		return v.Flag
	case Number:
		return v.Num != 0
	case String:
		return v.Str != ""
	case Void:
		return false
	default: // Function, Builtin, KeyLiteral, KeySequence
		return true
	}
}

// Equal implements the structural/reference equality rules of spec §4.A:
// cross-type is always unequal, scalars/strings compare structurally,
// functions compare by reference identity.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case Void:
		return true
	case Number:
		return v.Num == o.Num
	case String:
		return v.Str == o.Str
	case Bool:
		return v.Flag == o.Flag
	case KeyLiteral:
		return v.Key == o.Key
	case KeySequence:
		return keys.Unparse(v.Seq) == keys.Unparse(o.Seq)
	case Function:
		return v.Fn == o.Fn
	case Builtin:
		return v.Native == o.Native
	default:
		return false
	}
}

// numberString renders a float with the shortest round-trip decimal
// representation, per spec §4.A ("numbers use shortest round-trip
// decimal").
func numberString(n float64) string {
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// String renders a Value for print() and for the "+" string-coercion rule.
func (v Value) String() string {
	switch v.Kind {
	case Void:
		return ""
	case Number:
		return numberString(v.Num)
	case String:
		return v.Str
	case Bool:
		if v.Flag {
			return "true"
		}
		return "false"
	case KeyLiteral:
		return v.Key.String()
	case KeySequence:
		return keys.Unparse(v.Seq)
	case Function:
		return fmt.Sprintf("<function %s>", v.Fn.Name)
	case Builtin:
		return fmt.Sprintf("<builtin %s>", v.Native.Name)
	default:
		return "<?>"
	}
}
