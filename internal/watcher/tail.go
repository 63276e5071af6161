package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// tailDebounce coalesces bursts of transcript writes into one scan.
const tailDebounce = 200 * time.Millisecond

// tailPollDefault is the polling interval when fsnotify is unavailable.
const tailPollDefault = 2 * time.Second

// runTailer watches the transcript for appends and classifies new
// assistant text out-of-band, so issues accumulate even between hook
// notifies. Falls back to polling when fsnotify cannot watch the
// transcript's directory (e.g. NFS).
func (w *Watcher) runTailer(ctx context.Context) {
	if w.cfg.PollMode {
		w.pollTranscript(ctx)
		return
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "hookwatch: fsnotify unavailable, polling transcript: %v\n", err)
		w.pollTranscript(ctx)
		return
	}
	defer func() { _ = fw.Close() }()

	// Watch the directory, not the file: the host tool may replace or
	// create the transcript after the watcher starts.
	dir := filepath.Dir(w.cfg.Transcript)
	if err := fw.Add(dir); err != nil {
		fmt.Fprintf(os.Stderr, "hookwatch: watch %s failed, polling transcript: %v\n", dir, err)
		w.pollTranscript(ctx)
		return
	}

	// Catch up on anything written before the watch existed.
	w.scanTranscript()

	// Single debounce timer, reset on each event. Initialized stopped;
	// the first event starts it.
	debounce := time.NewTimer(tailDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-debounce.C:
			w.touch()
			w.scanTranscript()

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Name != w.cfg.Transcript {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(tailDebounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "hookwatch: transcript watch: %v\n", err)
		}
	}
}

// pollTranscript scans the transcript on a fixed interval.
func (w *Watcher) pollTranscript(ctx context.Context) {
	interval := w.cfg.PollInterval
	if interval == 0 {
		interval = tailPollDefault
	}

	var lastSize int64
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(w.cfg.Transcript)
			if err != nil {
				continue
			}
			if info.Size() == lastSize {
				continue
			}
			lastSize = info.Size()
			w.touch()
			w.scanTranscript()
		}
	}
}
