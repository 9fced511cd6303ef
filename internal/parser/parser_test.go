package parser

import (
	"testing"

	"key-mods/internal/ast"
	"key-mods/internal/keys"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := ParseProgram(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return prog
}

func TestParseStaticChordMapping(t *testing.T) {
	prog := parse(t, "capslock::esc;")
	if len(prog.Stmts) != 1 {
		t.Fatalf("got %d statements", len(prog.Stmts))
	}
	m, ok := prog.Stmts[0].(*ast.MappingStmt)
	if !ok {
		t.Fatalf("got %T, want *ast.MappingStmt", prog.Stmts[0])
	}
	if m.Mods != 0 {
		t.Errorf("LHS mods = %v, want 0", m.Mods)
	}
	if m.RHSChord == nil {
		t.Fatal("expected RHSChord")
	}
}

func TestParseModifierChordMapping(t *testing.T) {
	prog := parse(t, "!h::left;")
	m := prog.Stmts[0].(*ast.MappingStmt)
	if !m.Mods.Has(keys.ModAlt) {
		t.Errorf("expected Alt modifier, got %v", m.Mods)
	}
}

func TestParseStringRHS(t *testing.T) {
	prog := parse(t, `!enter::"-- ";`)
	m := prog.Stmts[0].(*ast.MappingStmt)
	lit, ok := m.RHSStr.(*ast.StringLit)
	if !ok {
		t.Fatalf("got %T, want *ast.StringLit", m.RHSStr)
	}
	if lit.Value != "-- " {
		t.Errorf("got %q", lit.Value)
	}
}

func TestParseBlockRHS(t *testing.T) {
	prog := parse(t, `f12::{ print("hi"); };`)
	m := prog.Stmts[0].(*ast.MappingStmt)
	if m.RHSBlock == nil || len(m.RHSBlock.Stmts) != 1 {
		t.Fatalf("expected one-statement block, got %#v", m.RHSBlock)
	}
}

func TestParseIfElseIfElse(t *testing.T) {
	prog := parse(t, `
		let x = 1;
		if (x == 1) {
			print("one");
		} else if (x == 2) {
			print("two");
		} else {
			print("other");
		}
	`)
	ifs, ok := prog.Stmts[1].(*ast.IfStmt)
	if !ok {
		t.Fatalf("got %T, want *ast.IfStmt", prog.Stmts[1])
	}
	if ifs.ElseIf == nil || ifs.ElseIf.Else == nil {
		t.Fatal("expected else-if chain with terminal else")
	}
}

func TestParseForLoop(t *testing.T) {
	prog := parse(t, `
		for (let i = 0; i < 3; i = i + 1) {
			print(i);
		}
	`)
	f, ok := prog.Stmts[0].(*ast.ForStmt)
	if !ok {
		t.Fatalf("got %T, want *ast.ForStmt", prog.Stmts[0])
	}
	if f.Init == nil || f.Cond == nil || f.Post == nil {
		t.Fatal("expected all three for-clauses present")
	}
}

func TestParseLambdaAndCall(t *testing.T) {
	prog := parse(t, `map_key("a", || { send("a"); });`)
	es, ok := prog.Stmts[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("got %T", prog.Stmts[0])
	}
	call, ok := es.X.(*ast.Call)
	if !ok {
		t.Fatalf("got %T, want *ast.Call", es.X)
	}
	if len(call.Args) != 2 {
		t.Fatalf("got %d args, want 2", len(call.Args))
	}
	if _, ok := call.Args[1].(*ast.Lambda); !ok {
		t.Fatalf("got %T, want *ast.Lambda", call.Args[1])
	}
}

func TestParseLambdaWithParam(t *testing.T) {
	prog := parse(t, `on_window_change(|class| { print(class); });`)
	es := prog.Stmts[0].(*ast.ExprStmt)
	call := es.X.(*ast.Call)
	lam := call.Args[0].(*ast.Lambda)
	if len(lam.Params) != 1 || lam.Params[0] != "class" {
		t.Fatalf("got params %v", lam.Params)
	}
}

func TestParsePrecedence(t *testing.T) {
	prog := parse(t, "let x = 1 + 2 * 3;")
	let := prog.Stmts[0].(*ast.LetStmt)
	bin, ok := let.Value.(*ast.Binary)
	if !ok || bin.Op != "+" {
		t.Fatalf("got %#v, want top-level +", let.Value)
	}
	rhs, ok := bin.Right.(*ast.Binary)
	if !ok || rhs.Op != "*" {
		t.Fatalf("got %#v, want nested *", bin.Right)
	}
}

func TestParseBoolLiterals(t *testing.T) {
	prog := parse(t, "let a = true; let b = false;")
	a := prog.Stmts[0].(*ast.LetStmt).Value.(*ast.BoolLit)
	b := prog.Stmts[1].(*ast.LetStmt).Value.(*ast.BoolLit)
	if !a.Value || b.Value {
		t.Errorf("got a=%v b=%v, want a=true b=false", a.Value, b.Value)
	}
}

func TestParseBreakContinueOutsideLoopIsSyntacticallyLegal(t *testing.T) {
	// The parser only enforces the grammar shape; break/continue-outside-
	// loop is a runtime (interp) check, not a parse error.
	if _, err := ParseProgram("break;"); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
}

func TestParseUnknownKeyNameIsParseError(t *testing.T) {
	if _, err := ParseProgram("nosuchkey::esc;"); err == nil {
		t.Fatal("expected error for unknown key name")
	}
}

func TestParseMappingDisambiguationVsExpression(t *testing.T) {
	// A bare identifier not followed by :: is an ordinary expression
	// statement, not a mapping (spec §4.B's one-token-lookahead rule).
	prog := parse(t, "print(1);")
	if _, ok := prog.Stmts[0].(*ast.MappingStmt); ok {
		t.Fatal("expected non-mapping statement")
	}
}

func TestParseHaltsOnFirstError(t *testing.T) {
	_, err := ParseProgram("let x = ;")
	if err == nil {
		t.Fatal("expected parse error")
	}
}
