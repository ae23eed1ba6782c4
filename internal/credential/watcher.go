package credential

import (
	"log"
	"os"
	"time"
)

// Watcher polls a credentials file's mtime and reloads the Source when it
// changes. No library in this codebase's dependency pool carries an
// fsnotify-style OS file-event API (checked across every go.mod in the
// example pack), so this is a deliberate stdlib choice, not an oversight —
// spec §9 explicitly asks re-implementations not to assume a specific OS
// API. A short settle delay absorbs partial writes (spec §5, "~200ms").
type Watcher struct {
	Path         string
	Source       *Source
	PollInterval time.Duration
	SettleDelay  time.Duration

	stop chan struct{}
}

// NewWatcher builds a watcher with the defaults spec §5 describes.
func NewWatcher(path string, source *Source) *Watcher {
	return &Watcher{
		Path:         path,
		Source:       source,
		PollInterval: 1 * time.Second,
		SettleDelay:  200 * time.Millisecond,
		stop:         make(chan struct{}),
	}
}

// Start runs the poll loop in a new goroutine until Stop is called.
func (w *Watcher) Start() {
	go w.run()
}

// Stop terminates the poll loop.
func (w *Watcher) Stop() {
	close(w.stop)
}

func (w *Watcher) run() {
	var lastMod time.Time
	if info, err := os.Stat(w.Path); err == nil {
		lastMod = info.ModTime()
	}

	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			info, err := os.Stat(w.Path)
			if err != nil {
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			// Debounce: the write may still be in progress.
			time.Sleep(w.SettleDelay)
			pool, err := Load(w.Path)
			if err != nil {
				log.Printf("credential reload failed, keeping previous pool: %v", err)
				// Re-stat so a transient partial-write doesn't cause a
				// reload attempt on every subsequent tick.
				if info2, err2 := os.Stat(w.Path); err2 == nil {
					lastMod = info2.ModTime()
				}
				continue
			}
			w.Source.Swap(pool)
			lastMod = info.ModTime()
			log.Printf("credential pool reloaded: %d credentials", pool.Len())
		}
	}
}
