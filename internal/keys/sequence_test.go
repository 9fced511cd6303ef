package keys

import (
	"testing"

	evdev "github.com/holoplot/go-evdev"
)

func TestParseSequenceLiteralChars(t *testing.T) {
	toks, err := ParseSequence("hi")
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 2 {
		t.Fatalf("got %d tokens, want 2", len(toks))
	}
	if toks[0].Code != evdev.KEY_H || toks[1].Code != evdev.KEY_I {
		t.Errorf("got codes %v %v", toks[0].Code, toks[1].Code)
	}
	for _, tok := range toks {
		if len(tok.States) != 2 || tok.States[0] != Down || tok.States[1] != Up {
			t.Errorf("expected Down,Up states, got %v", tok.States)
		}
	}
}

func TestParseSequenceShiftedChar(t *testing.T) {
	toks, err := ParseSequence("A")
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 1 || !toks[0].NeedsShift {
		t.Fatalf("got %#v, want NeedsShift", toks)
	}
}

func TestParseSequenceBracketToken(t *testing.T) {
	toks, err := ParseSequence("{enter}")
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 1 || toks[0].Code != evdev.KEY_ENTER {
		t.Fatalf("got %#v", toks)
	}
	if len(toks[0].States) != 2 {
		t.Fatalf("expected Down+Up, got %v", toks[0].States)
	}
}

func TestParseSequenceBracketTokenWithState(t *testing.T) {
	toks, err := ParseSequence("{shift down}1{shift up}")
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 3 {
		t.Fatalf("got %d tokens, want 3", len(toks))
	}
	if len(toks[0].States) != 1 || toks[0].States[0] != Down {
		t.Errorf("got %v, want [Down]", toks[0].States)
	}
	if len(toks[2].States) != 1 || toks[2].States[0] != Up {
		t.Errorf("got %v, want [Up]", toks[2].States)
	}
}

func TestParseSequenceUnknownBracketName(t *testing.T) {
	if _, err := ParseSequence("{nosuchkey}"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseSequenceUnterminatedBracket(t *testing.T) {
	if _, err := ParseSequence("{enter"); err == nil {
		t.Fatal("expected error for unterminated bracket")
	}
}

func TestParseSequenceUnknownChar(t *testing.T) {
	if _, err := ParseSequence("λ"); err == nil {
		t.Fatal("expected error for unsupported character")
	}
}

func TestUnparseRoundTripsLiteralChars(t *testing.T) {
	for _, s := range []string{"hello", "Hi", "1-2=3"} {
		toks, err := ParseSequence(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if got := Unparse(toks); got != s {
			t.Errorf("round-trip %q: got %q", s, got)
		}
	}
}

func TestUnparseRoundTripsBracketTokens(t *testing.T) {
	for _, s := range []string{"{enter}", "{shift down}", "{shift up}"} {
		toks, err := ParseSequence(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if got := Unparse(toks); got != s {
			t.Errorf("round-trip %q: got %q", s, got)
		}
	}
}

func TestParseChordVariants(t *testing.T) {
	mods, code, err := ParseChord("^+a")
	if err != nil {
		t.Fatal(err)
	}
	if !mods.Has(ModCtrl) || !mods.Has(ModShift) {
		t.Errorf("got mods %v, want Ctrl+Shift", mods)
	}
	if code != evdev.KEY_A {
		t.Errorf("got code %v, want KEY_A", code)
	}
}

func TestParseChordBareKey(t *testing.T) {
	mods, code, err := ParseChord("esc")
	if err != nil {
		t.Fatal(err)
	}
	if mods != 0 {
		t.Errorf("got mods %v, want 0", mods)
	}
	if code != evdev.KEY_ESC {
		t.Errorf("got code %v, want KEY_ESC", code)
	}
}

func TestParseChordUnknownKey(t *testing.T) {
	if _, _, err := ParseChord("^nosuchkey"); err == nil {
		t.Fatal("expected error")
	}
}
