package keys

import (
	"testing"

	evdev "github.com/holoplot/go-evdev"
)

func TestModSetString(t *testing.T) {
	m := ModSet(0).With(ModCtrl).With(ModAlt)
	if got := m.String(); got != "^!" {
		t.Errorf("got %q, want %q", got, "^!")
	}
}

func TestModSetWithWithout(t *testing.T) {
	m := ModSet(0).With(ModShift)
	if !m.Has(ModShift) {
		t.Fatal("expected Shift set")
	}
	m = m.Without(ModShift)
	if m.Has(ModShift) {
		t.Fatal("expected Shift cleared")
	}
}

func TestChordString(t *testing.T) {
	c := Chord{Mods: ModSet(0).With(ModAlt), Key: evdev.KEY_H, State: Down}
	got := c.String()
	want := "!h/down"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLookupKnownAndUnknown(t *testing.T) {
	if _, ok := Lookup("capslock"); !ok {
		t.Error("expected capslock to be a known key name")
	}
	if _, ok := Lookup("nosuchkey"); ok {
		t.Error("expected nosuchkey to be unknown")
	}
}

func TestNameOfRoundTrip(t *testing.T) {
	code, ok := Lookup("enter")
	if !ok {
		t.Fatal("enter should resolve")
	}
	if got := NameOf(code); got != "enter" {
		t.Errorf("got %q, want %q", got, "enter")
	}
}

func TestModifierOf(t *testing.T) {
	mod, ok := ModifierOf(evdev.KEY_LEFTCTRL)
	if !ok || mod != ModCtrl {
		t.Fatalf("got (%v, %v), want (ModCtrl, true)", mod, ok)
	}
	if _, ok := ModifierOf(evdev.KEY_A); ok {
		t.Fatal("KEY_A should not be a modifier")
	}
}

func TestCharToKeyShiftedVsUnshifted(t *testing.T) {
	code, shift, ok := CharToKey('a')
	if !ok || shift {
		t.Fatalf("got (%v, %v, %v), want (KEY_A, false, true)", code, shift, ok)
	}
	code2, shift2, ok2 := CharToKey('A')
	if !ok2 || !shift2 || code2 != code {
		t.Fatalf("got (%v, %v, %v), want (same code, true, true)", code2, shift2, ok2)
	}
}

func TestCharToKeyUnknownRune(t *testing.T) {
	if _, _, ok := CharToKey('λ'); ok {
		t.Fatal("expected unknown rune to fail")
	}
}
