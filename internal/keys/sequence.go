package keys

import (
	"fmt"
	"strings"

	"key-mods/internal/kmerr"
)

// ErrBadKeyName is re-exported from kmerr for call sites in this file.
var ErrBadKeyName = kmerr.ErrBadKeyName

// SeqToken is one element of a parsed KeySequence Value (spec §3): a key
// together with the ordered state transitions it contributes. A bare
// literal character or a bracket token without an explicit state expands to
// [Down, Up]; "{name down}"/"{name up}" expand to a single state.
type SeqToken struct {
	Code       Code
	NeedsShift bool
	States     []State
}

// ParseSequence splits a sequence string such as
// `"hi{enter}a{shift down}1{shift up}"` into literal characters (each
// expanded to its modifier-qualified down+up pair, respecting Shift for
// uppercase letters and shifted symbols) and bracketed `{name}`,
// `{name down}`, `{name up}` tokens, per spec §4.D. It lives in this
// package (not the lexer) because dynamic string concatenation must be able
// to feed `send(...)` at runtime — the spec explicitly calls this out in
// §9 ("Sequence string parsing is done in the interpreter... not the
// lexer").
func ParseSequence(s string) ([]SeqToken, error) {
	var toks []SeqToken
	runes := []rune(s)
	i := 0
	for i < len(runes) {
		r := runes[i]
		if r == '{' {
			end := strings.IndexRune(string(runes[i+1:]), '}')
			if end < 0 {
				return nil, fmt.Errorf("unterminated bracket token at offset %d", i)
			}
			inner := string(runes[i+1 : i+1+end])
			tok, err := parseBracketToken(inner)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i += end + 2
			continue
		}
		code, needsShift, ok := CharToKey(r)
		if !ok {
			return nil, fmt.Errorf("%w: character %q", ErrBadKeyName, r)
		}
		toks = append(toks, SeqToken{Code: code, NeedsShift: needsShift, States: []State{Down, Up}})
		i++
	}
	return toks, nil
}

func parseBracketToken(inner string) (SeqToken, error) {
	fields := strings.Fields(inner)
	if len(fields) == 0 {
		return SeqToken{}, fmt.Errorf("%w: empty bracket token", ErrBadKeyName)
	}
	name := fields[0]
	code, ok := Lookup(name)
	if !ok {
		return SeqToken{}, fmt.Errorf("%w: %q", ErrBadKeyName, name)
	}
	states := []State{Down, Up}
	if len(fields) > 1 {
		switch fields[1] {
		case "down":
			states = []State{Down}
		case "up":
			states = []State{Up}
		default:
			return SeqToken{}, fmt.Errorf("%w: bad state %q for %q", ErrBadKeyName, fields[1], name)
		}
	}
	return SeqToken{Code: code, States: states}, nil
}

// Unparse renders tokens back to their canonical `{name}`/`{name
// down}`/`{name up}` or bare-character source form, the inverse of
// ParseSequence. It is the basis of the expand/compress idempotence
// invariant in spec §8 — printable single-char tokens round-trip as the
// literal character, everything else round-trips as a bracket token.
func Unparse(toks []SeqToken) string {
	var b strings.Builder
	for _, t := range toks {
		if ch, ok := charForToken(t); ok {
			b.WriteRune(ch)
			continue
		}
		name := NameOf(t.Code)
		switch {
		case len(t.States) == 2 && t.States[0] == Down && t.States[1] == Up:
			fmt.Fprintf(&b, "{%s}", name)
		case len(t.States) == 1 && t.States[0] == Down:
			fmt.Fprintf(&b, "{%s down}", name)
		case len(t.States) == 1 && t.States[0] == Up:
			fmt.Fprintf(&b, "{%s up}", name)
		default:
			fmt.Fprintf(&b, "{%s}", name)
		}
	}
	return b.String()
}

func charForToken(t SeqToken) (rune, bool) {
	if len(t.States) != 2 || t.States[0] != Down || t.States[1] != Up {
		return 0, false
	}
	for r, info := range charToKey {
		if info.Code == t.Code && info.NeedsShift == t.NeedsShift {
			return r, true
		}
	}
	return 0, false
}
