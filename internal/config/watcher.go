package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"ladderbot/internal/logger"
)

// Watcher 监听配置文件变更并推送重新加载后的配置。
// The trading section (credentials included) may live in an include file,
// so every file the include chain resolves to is watched; editing any of
// them re-keys the running account scope without a restart.
type Watcher struct {
	path string
	fsw  *fsnotify.Watcher

	mu        sync.Mutex
	files     map[string]bool
	listeners []func(*Config)
}

// NewWatcher starts watching path and its include files. The chain must
// already load cleanly.
func NewWatcher(path string) (*Watcher, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config watcher requires path")
	}
	if _, err := Load(path); err != nil {
		return nil, err
	}
	files, err := resolveConfigIncludes(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("start config watcher failed: %w", err)
	}
	w := &Watcher{path: path, fsw: fsw}
	if err := w.watchFiles(files); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	go w.loop()
	return w, nil
}

// Subscribe 注册监听器。
func (w *Watcher) Subscribe(fn func(*Config)) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

// Close 停止监听。
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// watchFiles watches the directories of files, not the files themselves, so
// editor rename-and-replace saves keep being seen.
func (w *Watcher) watchFiles(files []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files = make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		f = filepath.Clean(f)
		w.files[f] = true
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch config dir failed (%s): %w", dir, err)
		}
	}
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.relevant(evt) {
				w.reload(evt.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warnf("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) relevant(evt fsnotify.Event) bool {
	if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[filepath.Clean(evt.Name)]
}

func (w *Watcher) reload(name string) {
	cfg, err := Load(w.path)
	if err != nil {
		// A broken edit keeps the running config untouched.
		logger.Errorf("config reload failed (%s): %v", name, err)
		return
	}
	// include 列表可能也改了，重新铺一遍监听。
	if files, err := resolveConfigIncludes(w.path); err == nil {
		if err := w.watchFiles(files); err != nil {
			logger.Warnf("rewatch config files failed: %v", err)
		}
	}
	w.notify(cfg)
}

func (w *Watcher) notify(cfg *Config) {
	w.mu.Lock()
	listeners := append(([]func(*Config))(nil), w.listeners...)
	w.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
}
