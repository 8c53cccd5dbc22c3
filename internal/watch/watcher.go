// Package watch monitors the intake directory for new audio files and feeds
// them to a submit function once they are fully written. Files copied in
// slowly (network mounts, S3 downloads) are detected by waiting for the size
// to stop changing before submitting.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jordanw/callscope/internal/config"
	"github.com/jordanw/callscope/internal/logger"
)

// Stability tuning, variables so tests can tighten them.
var (
	// File size must be unchanged for this many consecutive checks.
	stableChecks = 2
	// Interval between stability checks.
	stableCheckInterval = time.Second
	// stabilityTimeout caps how long a single file is waited on.
	stabilityTimeout = 30 * time.Second
)

// SubmitFunc receives the path of a file ready for processing.
type SubmitFunc func(path string) error

// KnownFunc reports whether a filename has already been processed, used to
// skip files during the startup backfill scan.
type KnownFunc func(ctx context.Context, filename string) bool

// Watcher watches one directory, non-recursively.
type Watcher struct {
	dir    string
	submit SubmitFunc
	known  KnownFunc
	log    *logger.Logger

	fsw     *fsnotify.Watcher
	started bool
	done    chan struct{}
}

// New creates a Watcher on dir. Start begins delivery.
func New(dir string, submit SubmitFunc, known KnownFunc, log *logger.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:    dir,
		submit: submit,
		known:  known,
		log:    log.WithField(logger.FieldComponent, "watcher"),
		fsw:    fsw,
		done:   make(chan struct{}),
	}, nil
}

// Start scans the directory for files that arrived while the service was
// down, then consumes filesystem events until the context is canceled or
// Close is called.
func (w *Watcher) Start(ctx context.Context) {
	w.started = true
	go func() {
		defer close(w.done)

		w.backfill(ctx)

		for {
			select {
			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				w.handleEvent(ctx, event)
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				w.log.WithError(err).Error("File watcher error")
			case <-ctx.Done():
				return
			}
		}
	}()
	w.log.WithField("dir", w.dir).Info("File watcher started")
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	if w.started {
		<-w.done
	}
	return err
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	// A file dropped into the directory shows up as Create; a file renamed
	// into place (our own atomic downloads included) shows up as Create or
	// Rename depending on the platform.
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	filename := filepath.Base(event.Name)
	if !config.IsSupportedAudioFile(filename) {
		return
	}

	// Rename also fires for the old name of a file moved away; there is
	// nothing at that path, so don't park a stability wait on it.
	if _, err := os.Stat(event.Name); err != nil {
		return
	}

	log := w.log.WithField(logger.FieldFilename, filename)
	log.Info("New audio file detected")

	// Stability wait happens off the event loop so a slow copy does not
	// block detection of other files.
	go func() {
		if !w.waitStable(ctx, event.Name) {
			log.Warn("File did not stabilize, submitting anyway")
		}
		if _, err := os.Stat(event.Name); err != nil {
			log.Debug("File disappeared before submission")
			return
		}
		if err := w.submit(event.Name); err != nil {
			log.WithError(err).Error("Failed to submit file for processing")
		}
	}()
}

// waitStable blocks until the file size is positive and unchanged for
// stableChecks consecutive checks, or the timeout elapses.
func (w *Watcher) waitStable(ctx context.Context, path string) bool {
	deadline := time.Now().Add(stabilityTimeout)
	var lastSize int64
	stable := 0

	for time.Now().Before(deadline) {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			// Moved or deleted mid-copy; give up now instead of
			// running out the timeout.
			return false
		}
		if err == nil {
			size := info.Size()
			if size == lastSize && size > 0 {
				stable++
				if stable >= stableChecks {
					return true
				}
			} else {
				stable = 0
				lastSize = size
			}
		}

		select {
		case <-time.After(stableCheckInterval):
		case <-ctx.Done():
			return false
		}
	}
	return false
}

// backfill submits audio files already present in the directory, skipping
// ones the known function recognizes.
func (w *Watcher) backfill(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.WithError(err).Error("Failed to scan intake directory")
		return
	}

	submitted := 0
	for _, entry := range entries {
		if entry.IsDir() || !config.IsSupportedAudioFile(entry.Name()) {
			continue
		}
		if w.known != nil && w.known(ctx, entry.Name()) {
			continue
		}
		if err := w.submit(filepath.Join(w.dir, entry.Name())); err != nil {
			w.log.WithError(err).WithField(logger.FieldFilename, entry.Name()).Error("Failed to submit existing file")
			continue
		}
		submitted++
	}
	if submitted > 0 {
		w.log.WithField(logger.FieldCount, submitted).Info("Queued existing audio files")
	}
}
