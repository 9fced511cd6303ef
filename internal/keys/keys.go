// Package keys is the canonical key model: name/keycode/char tables,
// modifier sets, chords and key states, and sequence-string expansion.
//
// The keycode namespace is the Linux evdev one (KEY_A, KEY_F1, BTN_LEFT,
// ...), seeded from github.com/holoplot/go-evdev so the parser, the router
// and the uinput output sink all agree on one numbering.
package keys

import (
	"fmt"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// Code is a Linux evdev key/button code.
type Code = evdev.EvCode

// Mod is a single modifier bit.
type Mod uint8

const (
	ModCtrl Mod = 1 << iota
	ModShift
	ModAlt
	ModMeta
)

// ModSet is a subset of {Ctrl, Shift, Alt, Meta}.
type ModSet uint8

func (m ModSet) Has(mod Mod) bool { return m&ModSet(mod) != 0 }
func (m ModSet) With(mod Mod) ModSet { return m | ModSet(mod) }
func (m ModSet) Without(mod Mod) ModSet { return m &^ ModSet(mod) }

// String renders a ModSet using the source-form flag characters: ^ + ! #
// for Ctrl Shift Alt Meta, in that fixed order.
func (m ModSet) String() string {
	var b strings.Builder
	if m.Has(ModCtrl) {
		b.WriteByte('^')
	}
	if m.Has(ModShift) {
		b.WriteByte('+')
	}
	if m.Has(ModAlt) {
		b.WriteByte('!')
	}
	if m.Has(ModMeta) {
		b.WriteByte('#')
	}
	return b.String()
}

// State is a key's transition state.
type State uint8

const (
	Down State = iota
	Up
	Repeat
)

func (s State) String() string {
	switch s {
	case Down:
		return "down"
	case Up:
		return "up"
	case Repeat:
		return "repeat"
	default:
		return "?"
	}
}

// Chord is the lookup key of the Mapping Table: (modifiers, key, state).
type Chord struct {
	Mods  ModSet
	Key   Code
	State State
}

func (c Chord) String() string {
	return fmt.Sprintf("%s%s/%s", c.Mods, NameOf(c.Key), c.State)
}

// modKeys maps the physical Ctrl/Shift/Alt/Meta keycodes to the Mod bit they
// carry, for both left and right variants.
var modKeys = map[Code]Mod{
	evdev.KEY_LEFTCTRL:  ModCtrl,
	evdev.KEY_RIGHTCTRL: ModCtrl,
	evdev.KEY_LEFTSHIFT: ModShift,
	evdev.KEY_RIGHTSHIFT: ModShift,
	evdev.KEY_LEFTALT:   ModAlt,
	evdev.KEY_RIGHTALT:  ModAlt,
	evdev.KEY_LEFTMETA:  ModMeta,
	evdev.KEY_RIGHTMETA: ModMeta,
}

// ModifierOf reports whether code is a modifier key, and which bit it is.
func ModifierOf(code Code) (Mod, bool) {
	m, ok := modKeys[code]
	return m, ok
}

// canonicalModKey is the keycode synthesized for a given modifier bit when
// the router needs to bracket an emission with a modifier press/release.
var canonicalModKey = map[Mod]Code{
	ModCtrl:  evdev.KEY_LEFTCTRL,
	ModShift: evdev.KEY_LEFTSHIFT,
	ModAlt:   evdev.KEY_LEFTALT,
	ModMeta:  evdev.KEY_LEFTMETA,
}

// CanonicalKeyFor returns the physical keycode the router synthesizes to
// represent mod being held.
func CanonicalKeyFor(mod Mod) Code { return canonicalModKey[mod] }

// AllMods is the canonical iteration order of modifier bits, used whenever
// bracketing needs a deterministic press/release order.
var AllMods = []Mod{ModCtrl, ModShift, ModAlt, ModMeta}
