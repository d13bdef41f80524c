package watcher

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"stringstack/internal/logger"
	"stringstack/internal/protocol"
	"stringstack/internal/session"
)

const (
	debounceInterval = 500 * time.Millisecond
	maxScriptSize    = 1 << 20

	// ScriptExt marks the files in the watched directory that are replayed.
	ScriptExt = ".stack"
)

// ResultCallback is called with the outcome of every replayed script.
type ResultCallback func(result protocol.ScriptResultPayload)

// Watcher monitors a directory of session scripts and replays each one
// through a fresh session when it is created or changed. A script holds the
// console input of a session: the capacity followed by tokens.
type Watcher struct {
	dir      string
	opts     session.Options
	callback ResultCallback
	debounce time.Duration
	log      *zap.SugaredLogger

	mu        sync.Mutex
	fsWatcher *fsnotify.Watcher
	cancel    chan struct{}
	timers    map[string]*time.Timer // script path → pending replay
}

// New creates a script watcher for dir.
func New(dir string, opts session.Options, callback ResultCallback) *Watcher {
	return &Watcher{
		dir:      dir,
		opts:     opts,
		callback: callback,
		debounce: debounceInterval,
		log:      logger.Named("watcher"),
		timers:   make(map[string]*time.Timer),
	}
}

// Start begins watching the directory and replays the scripts already in it.
func (w *Watcher) Start() error {
	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsW.Add(w.dir); err != nil {
		fsW.Close()
		return err
	}

	w.mu.Lock()
	w.fsWatcher = fsW
	w.cancel = make(chan struct{})
	w.mu.Unlock()

	go w.watchLoop(fsW, w.cancel)

	// Replay existing scripts.
	go func() {
		for _, path := range ListScripts(w.dir) {
			w.emit(RunScript(path, w.opts))
		}
	}()

	w.log.Infow("watching scripts", "dir", w.dir)
	return nil
}

// watchLoop processes fsnotify events with per-file debouncing.
func (w *Watcher) watchLoop(fsW *fsnotify.Watcher, cancel chan struct{}) {
	for {
		select {
		case <-cancel:
			return

		case event, ok := <-fsW.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !IsScript(filepath.Base(event.Name)) {
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-fsW.Errors:
			if !ok {
				return
			}
			w.log.Warnw("watcher error", "dir", w.dir, "error", err)
		}
	}
}

// schedule replays a script once its writes have settled.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		w.emit(RunScript(path, w.opts))
	})
}

func (w *Watcher) emit(result protocol.ScriptResultPayload) {
	if result.Error != "" {
		w.log.Warnw("script failed", "script", result.Script, "error", result.Error)
	} else {
		w.log.Debugw("script replayed", "script", result.Script, "values", result.Values)
	}
	if w.callback != nil {
		w.callback(result)
	}
}

// RunScript replays one script file through a fresh session.
func RunScript(path string, opts session.Options) protocol.ScriptResultPayload {
	result := protocol.ScriptResultPayload{Script: filepath.Base(path)}

	info, err := os.Stat(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if info.Size() > maxScriptSize {
		result.Error = "script too large"
		return result
	}
	data, err := os.ReadFile(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	var out bytes.Buffer
	sum, err := session.RunScript(bytes.NewReader(data), &out, opts)
	result.Output = out.String()
	result.Values = sum.Values
	result.Overflows = sum.Overflows
	result.Underflow = sum.Underflow
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// ListScripts returns the script files in dir, sorted by name.
func ListScripts(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var scripts []string
	for _, entry := range entries {
		if entry.IsDir() || !IsScript(entry.Name()) {
			continue
		}
		scripts = append(scripts, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(scripts)
	return scripts
}

// IsScript reports whether a file name is a visible script.
func IsScript(name string) bool {
	return !isHidden(name) && strings.HasSuffix(name, ScriptExt) && len(name) > len(ScriptExt)
}

// Shutdown stops watching and cancels pending replays.
func (w *Watcher) Shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	if w.fsWatcher != nil {
		close(w.cancel)
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
}

func isHidden(name string) bool {
	return len(name) > 0 && name[0] == '.'
}
