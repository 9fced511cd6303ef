// Package mapping implements the Mapping Table described in spec §4.F: a
// store of (chord → action) bindings with atomic shorthand installation and
// dispatch-safe reentrant mutation.
package mapping

import (
	"key-mods/internal/ast"
	"key-mods/internal/keys"
	"key-mods/internal/value"
)

// ActionKind distinguishes the two RHS forms spec §3 allows for an Action.
type ActionKind int

const (
	StaticEmit ActionKind = iota
	BlockAction
)

// Action is the value bound to a Chord. Exactly one of the payload fields
// is meaningful, selected by Kind.
type Action struct {
	Kind ActionKind
	Seq  []keys.SeqToken // StaticEmit
	Mods keys.ModSet     // StaticEmit from a bare-chord RHS: its declared modifiers, for the router's bracketing (spec §4.G); zero for a string RHS
	Body *ast.BlockStmt  // BlockAction
	Env  *value.Env      // BlockAction: the env captured at mapping-statement time
}

// Table is the concrete hash map keyed by Chord, plus the pending-install
// buffer that gives reentrant map_key()/mapping-statement calls made from
// inside a dispatch the semantics spec §4.F requires: "reentrant
// installation ... takes effect from the next inbound event onward — never
// mid-dispatch for the current one." The Table is owned exclusively by the
// single scheduler goroutine (spec §5), so no locking is needed.
type Table struct {
	entries     map[keys.Chord]Action
	pending     []pendingOp
	dispatching bool
}

type opKind int

const (
	opInstall opKind = iota
	opRemove
)

type pendingOp struct {
	kind   opKind
	chord  keys.Chord
	action Action
}

func NewTable() *Table {
	return &Table{entries: make(map[keys.Chord]Action)}
}

// Lookup returns the action bound to c, if any.
func (t *Table) Lookup(c keys.Chord) (Action, bool) {
	a, ok := t.entries[c]
	return a, ok
}

// BeginDispatch marks the start of processing a single inbound event;
// Install/Remove calls made before the matching EndDispatch are buffered.
func (t *Table) BeginDispatch() { t.dispatching = true }

// EndDispatch applies any buffered installs/removes and clears the buffer.
// The router calls this once per event, right after dispatching it: a
// StaticEmit has been emitted by then, while a BlockAction has only been
// spawned as a task, so the block's own installs run later, unbuffered.
func (t *Table) EndDispatch() {
	t.dispatching = false
	for _, op := range t.pending {
		switch op.kind {
		case opInstall:
			t.entries[op.chord] = op.action
		case opRemove:
			delete(t.entries, op.chord)
		}
	}
	t.pending = nil
}

// Install binds chord to action, overwriting silently (spec §4.F
// "overwrites are silent").
func (t *Table) Install(chord keys.Chord, action Action) {
	if t.dispatching {
		t.pending = append(t.pending, pendingOp{kind: opInstall, chord: chord, action: action})
		return
	}
	t.entries[chord] = action
}

// Reset clears every binding, for a live script reload (spec §11): rather
// than replace the pointer
// every collaborator (Router, Interp) already holds, a reload empties this
// Table in place and the reloaded script's mapping statements repopulate
// it, so in-flight tasks holding a reference to the old Table keep working
// against the same object.
func (t *Table) Reset() {
	t.entries = make(map[keys.Chord]Action)
	t.pending = nil
}

// Remove unbinds chord, if bound.
func (t *Table) Remove(chord keys.Chord) {
	if t.dispatching {
		t.pending = append(t.pending, pendingOp{kind: opRemove, chord: chord})
		return
	}
	delete(t.entries, chord)
}

// shorthandStates is the fixed Down/Up/Repeat triple that a mods+key
// shorthand mapping expands into (spec §3 "the shorthand a::b expands to
// three chord mappings, one per state").
var shorthandStates = [3]keys.State{keys.Down, keys.Up, keys.Repeat}

// InstallShorthand installs action at all three states of (mods, key) as a
// unit (spec §4.F invariant: "the three Down/Up/Repeat entries ... are
// always added or removed as a unit").
func (t *Table) InstallShorthand(mods keys.ModSet, key keys.Code, action Action) {
	for _, st := range shorthandStates {
		t.Install(keys.Chord{Mods: mods, Key: key, State: st}, action)
	}
}

// RemoveShorthand unbinds all three states of (mods, key) as a unit.
func (t *Table) RemoveShorthand(mods keys.ModSet, key keys.Code) {
	for _, st := range shorthandStates {
		t.Remove(keys.Chord{Mods: mods, Key: key, State: st})
	}
}

// Dump renders the live table as chord-string -> action-kind pairs, for
// the --dump-mappings debug command. It reports only the Down entry of
// each Down/Up/Repeat shorthand triple, since all three always carry the
// same action kind (a bare-chord mapping's three actions differ only in
// their payload edges).
func (t *Table) Dump() map[string]string {
	out := make(map[string]string, len(t.entries))
	for chord, action := range t.entries {
		if chord.State != keys.Down {
			continue
		}
		kind := "emit"
		if action.Kind == BlockAction {
			kind = "block"
		}
		out[chord.String()] = kind
	}
	return out
}
