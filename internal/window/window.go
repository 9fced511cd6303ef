// Package window implements the active-window observer that backs the
// on_window_change/active_window_class builtins (spec §6). It polls the
// desktop the way the retrieval pack's witnessd IBus engine does its own
// focus tracking: xdotool/xprop on X11, a GNOME Shell D-Bus Eval call on
// Wayland (org.freedesktop.IBus.Panel has no portal-free equivalent, so
// Shell's Eval is the same expedient the pack reaches for).
package window

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

// Watcher implements interp.WindowSource.
type Watcher struct {
	isWayland bool
	conn      *dbus.Conn // Wayland only; nil on X11

	mu       sync.Mutex
	current  string
	handlers []func(class string)

	pollInterval time.Duration
	stop         chan struct{}
}

// New starts a Watcher polling at interval (spec's example scripts assume
// sub-second responsiveness; the teacher's own focusMonitorLoop polls at
// 500ms, which we keep as the default via a zero interval).
func New(interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	w := &Watcher{
		isWayland:    os.Getenv("WAYLAND_DISPLAY") != "",
		pollInterval: interval,
		stop:         make(chan struct{}),
	}
	if w.isWayland {
		if conn, err := dbus.SessionBus(); err == nil {
			w.conn = conn
		}
	}
	go w.loop()
	return w
}

// Close stops the polling goroutine.
func (w *Watcher) Close() {
	close(w.stop)
	if w.conn != nil {
		w.conn.Close()
	}
}

// ActiveClass returns the most recently observed window class.
func (w *Watcher) ActiveClass() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == "" {
		return "", false
	}
	return w.current, true
}

// OnChange registers cb to run, in registration order, on every observed
// class change (spec scenario 6: "multiple on_window_change handlers fire
// in the order they were declared").
func (w *Watcher) OnChange(cb func(class string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, cb)
}

func (w *Watcher) loop() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			class, err := w.query()
			if err != nil || class == "" {
				continue
			}
			w.mu.Lock()
			if class == w.current {
				w.mu.Unlock()
				continue
			}
			w.current = class
			handlers := append([]func(string){}, w.handlers...)
			w.mu.Unlock()
			for _, h := range handlers {
				h(class)
			}
		}
	}
}

func (w *Watcher) query() (string, error) {
	if w.isWayland {
		return w.queryWayland()
	}
	return w.queryX11()
}

func (w *Watcher) queryX11() (string, error) {
	out, err := exec.Command("xdotool", "getactivewindow", "getwindowclassname").Output()
	if err != nil {
		return w.queryX11Xprop()
	}
	return strings.TrimSpace(string(out)), nil
}

func (w *Watcher) queryX11Xprop() (string, error) {
	idOut, err := exec.Command("xprop", "-root", "_NET_ACTIVE_WINDOW").Output()
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(idOut))
	if len(fields) == 0 {
		return "", fmt.Errorf("no active window")
	}
	id := fields[len(fields)-1]
	classOut, err := exec.Command("xprop", "-id", id, "WM_CLASS").Output()
	if err != nil {
		return "", err
	}
	return parseWMClass(string(classOut)), nil
}

func parseWMClass(s string) string {
	idx := strings.Index(s, "=")
	if idx < 0 {
		return ""
	}
	value := strings.TrimSpace(s[idx+1:])
	parts := strings.Split(value, ", ")
	if len(parts) == 0 {
		return ""
	}
	return strings.Trim(parts[len(parts)-1], "\"")
}

// queryWayland asks the running GNOME Shell for the focused window's WM
// class via a live D-Bus method call, rather than shelling out to gdbus.
func (w *Watcher) queryWayland() (string, error) {
	if w.conn == nil {
		return "", fmt.Errorf("no session bus connection")
	}
	obj := w.conn.Object("org.gnome.Shell", "/org/gnome/Shell")
	call := obj.Call("org.gnome.Shell.Eval", 0,
		"global.display.focus_window?.get_wm_class() || ''")
	if call.Err != nil {
		return "", call.Err
	}
	var ok bool
	var result string
	if err := call.Store(&ok, &result); err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("shell eval failed")
	}
	return strings.Trim(result, "'\""), nil
}
