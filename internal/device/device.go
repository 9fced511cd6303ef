// Package device adapts github.com/holoplot/go-evdev into the Source the
// router consumes: grabbed keyboards/mice fanned into one channel of
// event.Raw records (spec §1 "Linux evdev device discovery, grabbing, and
// reading raw input_event records").
package device

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"github.com/tevino/abool/v2"

	"key-mods/internal/event"
)

// Source grabs a set of devices and fans their events into one channel,
// in the manner of the teacher's FindKeyboards/MonitorKeyboard pair,
// generalized from "keyboards with KEY_A+KEY_ENTER" to an explicit devices
// file and extended to emit the shared event.Raw record instead of a
// keyboard-only KeyEvent.
type Source struct {
	ch       chan event.Raw
	devices  []*evdev.InputDevice
	closing  *abool.AtomicBool
	wg       sync.WaitGroup
	WarnFunc func(format string, args ...any) // defaults to stderr
}

// Open resolves devicesFile (or, if empty, every device whose EV_KEY
// capabilities include both KEY_A and KEY_ENTER, i.e. keyboards; mice are
// not picked by default) into grabbed devices and starts one reader
// goroutine per device.
func Open(devicesFile string) (*Source, error) {
	paths, err := resolvePaths(devicesFile)
	if err != nil {
		return nil, err
	}
	s := &Source{
		ch:      make(chan event.Raw, 256),
		closing: abool.New(),
	}
	if s.WarnFunc == nil {
		s.WarnFunc = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "key-mods: warn: "+format+"\n", args...)
		}
	}
	for _, p := range paths {
		dev, err := evdev.Open(p)
		if err != nil {
			s.WarnFunc("open %s: %v (skipped)", p, err)
			continue
		}
		if err := dev.Grab(); err != nil {
			s.WarnFunc("grab %s: %v (device left un-grabbed, skipped)", p, err)
			dev.Close()
			continue
		}
		s.devices = append(s.devices, dev)
		s.wg.Add(1)
		go s.read(dev)
	}
	if len(s.devices) == 0 {
		return nil, fmt.Errorf("no devices grabbed")
	}
	return s, nil
}

// Events is the router.Source contract.
func (s *Source) Events() <-chan event.Raw { return s.ch }

// Close ungrabs and closes every device; reader goroutines exit on their
// next failed ReadOne, mirroring the teacher's close-triggers-ReadOne-
// error shutdown idiom (main.go/keyboard.go).
func (s *Source) Close() {
	s.closing.Set()
	for _, dev := range s.devices {
		dev.Ungrab()
		dev.Close()
	}
	s.wg.Wait()
	close(s.ch)
}

func (s *Source) read(dev *evdev.InputDevice) {
	defer s.wg.Done()
	name, _ := dev.Name()
	for {
		ev, err := dev.ReadOne()
		if err != nil {
			if !s.closing.IsSet() {
				s.WarnFunc("%s: read error: %v (device disconnected)", name, err)
			}
			return
		}
		s.ch <- event.Raw{
			DeviceID: name,
			Type:     uint16(ev.Type),
			Code:     uint16(ev.Code),
			Value:    event.Value(ev.Value),
			Time:     time.Now(),
		}
	}
}

// resolvePaths implements the devices-file format of spec §6: blank lines
// and `#` comments ignored, each remaining line either an absolute
// /dev/input path or a POSIX ERE matched against /dev/input/by-id and
// /dev/input/by-path entries. An empty devicesFile falls back to every
// device that can emit both KEY_A and KEY_ENTER, the teacher's
// FindKeyboards default.
func resolvePaths(devicesFile string) ([]string, error) {
	if devicesFile == "" {
		return defaultKeyboardPaths()
	}
	f, err := os.Open(devicesFile)
	if err != nil {
		return nil, fmt.Errorf("open devices file: %w", err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "/dev/input/") {
			out = append(out, line)
			continue
		}
		re, err := regexp.CompilePOSIX(line)
		if err != nil {
			return nil, fmt.Errorf("bad devices-file pattern %q: %w", line, err)
		}
		matches, err := matchByIDOrPath(re)
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func matchByIDOrPath(re *regexp.Regexp) ([]string, error) {
	var out []string
	for _, dir := range []string{"/dev/input/by-id", "/dev/input/by-path"} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if re.MatchString(e.Name()) {
				out = append(out, filepath.Join(dir, e.Name()))
			}
		}
	}
	return out, nil
}

func defaultKeyboardPaths() ([]string, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}
	var out []string
	for _, p := range paths {
		dev, err := evdev.Open(p.Path)
		if err != nil {
			continue
		}
		codes := dev.CapableEvents(evdev.EV_KEY)
		hasA, hasEnter := false, false
		for _, c := range codes {
			if c == evdev.KEY_A {
				hasA = true
			}
			if c == evdev.KEY_ENTER {
				hasEnter = true
			}
		}
		dev.Close()
		if hasA && hasEnter {
			out = append(out, p.Path)
		}
	}
	return out, nil
}
