package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"key-mods/internal/interp"
	"key-mods/internal/kmerr"
	"key-mods/internal/parser"
)

// ScriptReloader watches a .km script for writes and re-parses it on
// change; the devices file is not watched. It follows the debounce/
// watch-the-directory pattern of the retrieval pack's config Loader
// (internal/config/loader.go in the witnessd example): fsnotify only
// reliably reports events on the containing directory across editors that
// write-via-rename, so the watcher targets the directory and filters by
// basename.
type ScriptReloader struct {
	ip         *interp.Interp
	scriptPath string

	watcher *fsnotify.Watcher
	onError func(error)
	onOK    func()
}

// NewScriptReloader starts watching scriptPath's directory for writes.
func NewScriptReloader(ip *interp.Interp, scriptPath string, onError func(error), onOK func()) (*ScriptReloader, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(scriptPath)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	r := &ScriptReloader{ip: ip, scriptPath: scriptPath, watcher: w, onError: onError, onOK: onOK}
	go r.loop()
	return r, nil
}

func (r *ScriptReloader) loop() {
	var debounce *time.Timer
	const delay = 150 * time.Millisecond

	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filepath.Base(r.scriptPath) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(delay, r.reload)

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.onError(fmt.Errorf("watch error: %w", err))
		}
	}
}

// reload re-parses the script file and, only on success, resets the
// mapping table and re-runs the program's top-level statements against the
// interpreter's existing root environment. A parse failure is logged and
// the previous mapping table is left untouched (spec §11: "a failed
// re-parse ... keeps running the previous script").
func (r *ScriptReloader) reload() {
	data, err := os.ReadFile(r.scriptPath)
	if err != nil {
		r.onError(fmt.Errorf("reload: read %s: %w", r.scriptPath, err))
		return
	}
	prog, err := parser.ParseProgram(string(data))
	if err != nil {
		r.onError(kmerr.As(err, kmerr.KindParse))
		return
	}
	r.ip.Table.Reset()
	r.ip.RunProgram(prog, r.onError)
	if r.onOK != nil {
		r.onOK()
	}
}

// Close stops the watcher.
func (r *ScriptReloader) Close() error {
	return r.watcher.Close()
}
