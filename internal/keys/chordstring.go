package keys

import "fmt"

// ParseChord parses a trigger string such as "^+a" into its modifier set
// and key code, for map_key's string-trigger form (spec §6 "string
// triggers are parsed as chords"). This mirrors the parser's
// parseChordHead, but operates on a standalone string rather than a token
// stream, since map_key's trigger argument is an ordinary runtime String
// value, not source text the lexer ever sees.
func ParseChord(s string) (ModSet, Code, error) {
	var mods ModSet
	runes := []rune(s)
	i := 0
loop:
	for i < len(runes) {
		switch runes[i] {
		case '^':
			mods = mods.With(ModCtrl)
		case '+':
			mods = mods.With(ModShift)
		case '!':
			mods = mods.With(ModAlt)
		case '#':
			mods = mods.With(ModMeta)
		default:
			break loop
		}
		i++
	}
	name := string(runes[i:])
	code, ok := Lookup(name)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadKeyName, name)
	}
	return mods, code, nil
}
