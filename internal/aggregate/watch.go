package aggregate

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
)

// DefaultDebounce is how long Watch waits after the last report change.
const DefaultDebounce = 500 * time.Millisecond

// Watch aggregates dir once, then again whenever reports settle after a
// change, calling fn with each result. fn runs on the calling goroutine.
// Watch returns nil when ctx is cancelled.
func Watch(ctx context.Context, dir string, opts Options, debounce time.Duration, fn func([]Row, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return cerrors.InternalError("failed to create file watcher", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return cerrors.AggregationError("cannot watch report directory", err).WithDetail("dir", dir)
	}

	fn(Aggregate(dir, opts))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isReportEvent(ev) {
				continue
			}
			slog.Debug("report_changed",
				slog.String("file", filepath.Base(ev.Name)),
				slog.String("op", ev.Op.String()))
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("report_watch_error", slog.String("error", err.Error()))

		case <-timer.C:
			fn(Aggregate(dir, opts))
		}
	}
}

func isReportEvent(ev fsnotify.Event) bool {
	base := filepath.Base(ev.Name)
	if !strings.HasSuffix(base, ".txt") || strings.HasPrefix(base, ".") {
		return false
	}
	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
