package mapping

import (
	"testing"

	evdev "github.com/holoplot/go-evdev"

	"key-mods/internal/keys"
)

func chord(key evdev.EvCode, state keys.State) keys.Chord {
	return keys.Chord{Key: key, State: state}
}

func TestInstallLookup(t *testing.T) {
	tbl := NewTable()
	c := chord(evdev.KEY_A, keys.Down)
	tbl.Install(c, Action{Kind: StaticEmit})
	if _, ok := tbl.Lookup(c); !ok {
		t.Fatal("expected binding to be present")
	}
}

func TestInstallOverwritesSilently(t *testing.T) {
	tbl := NewTable()
	c := chord(evdev.KEY_A, keys.Down)
	tbl.Install(c, Action{Kind: StaticEmit})
	tbl.Install(c, Action{Kind: BlockAction})
	a, ok := tbl.Lookup(c)
	if !ok || a.Kind != BlockAction {
		t.Fatalf("got %#v, want silently overwritten BlockAction", a)
	}
}

func TestRemoveUnbinds(t *testing.T) {
	tbl := NewTable()
	c := chord(evdev.KEY_A, keys.Down)
	tbl.Install(c, Action{Kind: StaticEmit})
	tbl.Remove(c)
	if _, ok := tbl.Lookup(c); ok {
		t.Fatal("expected binding to be removed")
	}
}

func TestShorthandInstallsAllThreeStates(t *testing.T) {
	tbl := NewTable()
	tbl.InstallShorthand(0, evdev.KEY_H, Action{Kind: StaticEmit})
	for _, st := range shorthandStates {
		if _, ok := tbl.Lookup(keys.Chord{Key: evdev.KEY_H, State: st}); !ok {
			t.Fatalf("state %v not bound", st)
		}
	}
}

func TestShorthandRemoveIsAllOrNothing(t *testing.T) {
	tbl := NewTable()
	tbl.InstallShorthand(0, evdev.KEY_H, Action{Kind: StaticEmit})
	tbl.RemoveShorthand(0, evdev.KEY_H)
	for _, st := range shorthandStates {
		if _, ok := tbl.Lookup(keys.Chord{Key: evdev.KEY_H, State: st}); ok {
			t.Fatalf("state %v still bound after RemoveShorthand", st)
		}
	}
}

func TestDispatchBuffersInstallUntilEndDispatch(t *testing.T) {
	tbl := NewTable()
	c := chord(evdev.KEY_A, keys.Down)
	tbl.BeginDispatch()
	tbl.Install(c, Action{Kind: StaticEmit})
	if _, ok := tbl.Lookup(c); ok {
		t.Fatal("install during dispatch must not take effect immediately")
	}
	tbl.EndDispatch()
	if _, ok := tbl.Lookup(c); !ok {
		t.Fatal("buffered install should apply once dispatch ends")
	}
}

func TestDispatchBuffersRemoveUntilEndDispatch(t *testing.T) {
	tbl := NewTable()
	c := chord(evdev.KEY_A, keys.Down)
	tbl.Install(c, Action{Kind: StaticEmit})
	tbl.BeginDispatch()
	tbl.Remove(c)
	if _, ok := tbl.Lookup(c); !ok {
		t.Fatal("remove during dispatch must not take effect immediately")
	}
	tbl.EndDispatch()
	if _, ok := tbl.Lookup(c); ok {
		t.Fatal("buffered remove should apply once dispatch ends")
	}
}

func TestResetClearsAllBindings(t *testing.T) {
	tbl := NewTable()
	tbl.Install(chord(evdev.KEY_A, keys.Down), Action{Kind: StaticEmit})
	tbl.Reset()
	if _, ok := tbl.Lookup(chord(evdev.KEY_A, keys.Down)); ok {
		t.Fatal("expected table to be empty after Reset")
	}
}

func TestDumpReportsOnlyDownEntries(t *testing.T) {
	tbl := NewTable()
	tbl.InstallShorthand(0, evdev.KEY_H, Action{Kind: StaticEmit})
	dump := tbl.Dump()
	if len(dump) != 1 {
		t.Fatalf("got %d entries, want 1 (only Down state)", len(dump))
	}
	kind, ok := dump[chord(evdev.KEY_H, keys.Down).String()]
	if !ok || kind != "emit" {
		t.Fatalf("got %v, want emit entry", dump)
	}
}

func TestDumpReportsBlockKind(t *testing.T) {
	tbl := NewTable()
	tbl.InstallShorthand(0, evdev.KEY_F12, Action{Kind: BlockAction})
	dump := tbl.Dump()
	kind, ok := dump[chord(evdev.KEY_F12, keys.Down).String()]
	if !ok || kind != "block" {
		t.Fatalf("got %v, want block entry", dump)
	}
}
