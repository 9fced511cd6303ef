// Package output wraps the uinput virtual keyboard that the router replays
// key sequences onto (spec §1 "a virtual uinput keyboard the core replays
// bracketed and sequence key events onto").
package output

import (
	"fmt"

	"github.com/bendahl/uinput"

	"key-mods/internal/event"
)

// Sink implements router.Sink over a single uinput virtual keyboard, the
// same device the teacher's main.go creates with uinput.CreateKeyboard and
// tears down on shutdown.
type Sink struct {
	kbd uinput.Keyboard
}

// Open creates the virtual keyboard at devNode (normally /dev/uinput),
// named for the running program the way the teacher's main.go names its
// device "texpand".
func Open(devNode, name string) (*Sink, error) {
	kbd, err := uinput.CreateKeyboard(devNode, []byte(name))
	if err != nil {
		return nil, fmt.Errorf("create uinput keyboard: %w", err)
	}
	return &Sink{kbd: kbd}, nil
}

// Emit replays one raw key event onto the virtual keyboard. Only EV_KEY
// events reach here; the router never forwards anything else to a Sink.
func (s *Sink) Emit(raw event.Raw) error {
	code := int(raw.Code)
	switch raw.Value {
	case event.Down:
		return s.kbd.KeyDown(code)
	case event.Up:
		return s.kbd.KeyUp(code)
	case event.Repeat:
		// uinput.Keyboard exposes no discrete repeat event; re-asserting
		// KeyDown is the closest equivalent and is what the grabbed
		// device's own repeat ticks would have produced had the kernel
		// still been auto-repeating it.
		return s.kbd.KeyDown(code)
	default:
		return nil
	}
}

// Close tears down the virtual device.
func (s *Sink) Close() error {
	return s.kbd.Close()
}
