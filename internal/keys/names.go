package keys

import evdev "github.com/holoplot/go-evdev"

// nameToCode and codeToName are the parser/printer tables: source tokens
// like "a", "f1", "enter" map to evdev keycodes and back. Adapted from the
// teacher's flat KeyCharMap (keymap.go), generalized from "printable chars
// only" to the full identifier surface the .km grammar accepts on either
// side of a chord.
var nameToCode = map[string]Code{
	"a": evdev.KEY_A, "b": evdev.KEY_B, "c": evdev.KEY_C, "d": evdev.KEY_D,
	"e": evdev.KEY_E, "f": evdev.KEY_F, "g": evdev.KEY_G, "h": evdev.KEY_H,
	"i": evdev.KEY_I, "j": evdev.KEY_J, "k": evdev.KEY_K, "l": evdev.KEY_L,
	"m": evdev.KEY_M, "n": evdev.KEY_N, "o": evdev.KEY_O, "p": evdev.KEY_P,
	"q": evdev.KEY_Q, "r": evdev.KEY_R, "s": evdev.KEY_S, "t": evdev.KEY_T,
	"u": evdev.KEY_U, "v": evdev.KEY_V, "w": evdev.KEY_W, "x": evdev.KEY_X,
	"y": evdev.KEY_Y, "z": evdev.KEY_Z,

	"1": evdev.KEY_1, "2": evdev.KEY_2, "3": evdev.KEY_3, "4": evdev.KEY_4,
	"5": evdev.KEY_5, "6": evdev.KEY_6, "7": evdev.KEY_7, "8": evdev.KEY_8,
	"9": evdev.KEY_9, "0": evdev.KEY_0,

	"minus": evdev.KEY_MINUS, "equal": evdev.KEY_EQUAL,
	"leftbrace": evdev.KEY_LEFTBRACE, "rightbrace": evdev.KEY_RIGHTBRACE,
	"semicolon": evdev.KEY_SEMICOLON, "apostrophe": evdev.KEY_APOSTROPHE,
	"grave": evdev.KEY_GRAVE, "backslash": evdev.KEY_BACKSLASH,
	"comma": evdev.KEY_COMMA, "dot": evdev.KEY_DOT, "slash": evdev.KEY_SLASH,
	"space": evdev.KEY_SPACE,

	"enter": evdev.KEY_ENTER, "esc": evdev.KEY_ESC, "tab": evdev.KEY_TAB,
	"backspace": evdev.KEY_BACKSPACE, "delete": evdev.KEY_DELETE,
	"insert": evdev.KEY_INSERT, "home": evdev.KEY_HOME, "end": evdev.KEY_END,
	"pageup": evdev.KEY_PAGEUP, "pagedown": evdev.KEY_PAGEDOWN,
	"up": evdev.KEY_UP, "down": evdev.KEY_DOWN,
	"left": evdev.KEY_LEFT, "right": evdev.KEY_RIGHT,

	"f1": evdev.KEY_F1, "f2": evdev.KEY_F2, "f3": evdev.KEY_F3,
	"f4": evdev.KEY_F4, "f5": evdev.KEY_F5, "f6": evdev.KEY_F6,
	"f7": evdev.KEY_F7, "f8": evdev.KEY_F8, "f9": evdev.KEY_F9,
	"f10": evdev.KEY_F10, "f11": evdev.KEY_F11, "f12": evdev.KEY_F12,

	"capslock": evdev.KEY_CAPSLOCK,

	"leftctrl": evdev.KEY_LEFTCTRL, "rightctrl": evdev.KEY_RIGHTCTRL,
	"shift": evdev.KEY_LEFTSHIFT,
	"leftshift": evdev.KEY_LEFTSHIFT, "rightshift": evdev.KEY_RIGHTSHIFT,
	"leftalt": evdev.KEY_LEFTALT, "rightalt": evdev.KEY_RIGHTALT,
	"leftmeta": evdev.KEY_LEFTMETA, "rightmeta": evdev.KEY_RIGHTMETA,

	"btn_left": evdev.BTN_LEFT, "btn_right": evdev.BTN_RIGHT,
	"btn_middle": evdev.BTN_MIDDLE,
}

var codeToName map[Code]string

func init() {
	codeToName = make(map[Code]string, len(nameToCode))
	for name, code := range nameToCode {
		// On a collision the shorter name wins, so "shift" rather than
		// "leftshift" is the printed name of KEY_LEFTSHIFT.
		if old, ok := codeToName[code]; !ok || len(name) < len(old) {
			codeToName[code] = name
		}
	}
}

// Lookup resolves a source-token identifier to its keycode. Unknown names
// fail parsing per spec §3 ("unknown names fail at parse time").
func Lookup(name string) (Code, bool) {
	c, ok := nameToCode[name]
	return c, ok
}

// NameOf renders a keycode back to its canonical source name, for
// diagnostics and the --dump-mappings debug output.
func NameOf(code Code) string {
	if n, ok := codeToName[code]; ok {
		return n
	}
	return evdev.KEYToString[code]
}

// charInfo is one entry of the char → (keycode, needs_shift) table used by
// sequence expansion (spec §4.E). Adapted from the teacher's KeyCharMap,
// which paired a keycode with its normal/shifted rune; here the mapping
// runs character-first, matching ParseSequence's direction of travel.
type charInfo struct {
	Code       Code
	NeedsShift bool
}

var charToKey = map[rune]charInfo{}

func addCharPair(r rune, code Code, shiftedR rune) {
	charToKey[r] = charInfo{Code: code, NeedsShift: false}
	charToKey[shiftedR] = charInfo{Code: code, NeedsShift: true}
}

func init() {
	letters := "abcdefghijklmnopqrstuvwxyz"
	letterCodes := []Code{
		evdev.KEY_A, evdev.KEY_B, evdev.KEY_C, evdev.KEY_D, evdev.KEY_E,
		evdev.KEY_F, evdev.KEY_G, evdev.KEY_H, evdev.KEY_I, evdev.KEY_J,
		evdev.KEY_K, evdev.KEY_L, evdev.KEY_M, evdev.KEY_N, evdev.KEY_O,
		evdev.KEY_P, evdev.KEY_Q, evdev.KEY_R, evdev.KEY_S, evdev.KEY_T,
		evdev.KEY_U, evdev.KEY_V, evdev.KEY_W, evdev.KEY_X, evdev.KEY_Y,
		evdev.KEY_Z,
	}
	for i, l := range letters {
		addCharPair(l, letterCodes[i], l-('a'-'A'))
	}

	digitShift := map[rune]rune{
		'1': '!', '2': '@', '3': '#', '4': '$', '5': '%',
		'6': '^', '7': '&', '8': '*', '9': '(', '0': ')',
	}
	digitCodes := map[rune]Code{
		'1': evdev.KEY_1, '2': evdev.KEY_2, '3': evdev.KEY_3, '4': evdev.KEY_4,
		'5': evdev.KEY_5, '6': evdev.KEY_6, '7': evdev.KEY_7, '8': evdev.KEY_8,
		'9': evdev.KEY_9, '0': evdev.KEY_0,
	}
	for d, shifted := range digitShift {
		addCharPair(d, digitCodes[d], shifted)
	}

	addCharPair('-', evdev.KEY_MINUS, '_')
	addCharPair('=', evdev.KEY_EQUAL, '+')
	addCharPair('[', evdev.KEY_LEFTBRACE, '{')
	addCharPair(']', evdev.KEY_RIGHTBRACE, '}')
	addCharPair(';', evdev.KEY_SEMICOLON, ':')
	addCharPair('\'', evdev.KEY_APOSTROPHE, '"')
	addCharPair('`', evdev.KEY_GRAVE, '~')
	addCharPair('\\', evdev.KEY_BACKSLASH, '|')
	addCharPair(',', evdev.KEY_COMMA, '<')
	addCharPair('.', evdev.KEY_DOT, '>')
	addCharPair('/', evdev.KEY_SLASH, '?')
	charToKey[' '] = charInfo{Code: evdev.KEY_SPACE}
}

// CharToKey resolves a single rune to the keycode that types it and whether
// Shift must be held. Returns ok=false for runes outside the ASCII layout
// this table covers (spec §4.D "Unknown names fail BadKeyName" governs the
// bracket-token side; this is its literal-character counterpart).
func CharToKey(r rune) (Code, bool, bool) {
	info, ok := charToKey[r]
	return info.Code, info.NeedsShift, ok
}
