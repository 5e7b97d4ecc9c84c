package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/gridcalc/gridcalc/pkg/telemetry"
)

func newWatchCommand() *cobra.Command {
	var (
		metricsAddr string
		delay       time.Duration
		eventLevel  string
	)

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Recalculate a workbook document whenever it changes",
		Long: `Load and recalculate a workbook document, then watch it for changes.

Each time the file is written the document is reloaded and recalculated,
and every formula cell whose value changed is printed as
"Sheet!A1: old -> new". A document that fails to load is logged and the
previous values are kept.`,
		Example: `  # Watch a document
  gridcalc watch book.yaml

  # Expose Prometheus metrics while watching
  gridcalc watch --metrics-addr :9090 book.yaml

  # Stream warning events (cycles, blocked spills) as JSON lines
  gridcalc watch --events warning book.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(cmd, metricsAddr)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			if metricsAddr != "" {
				srv, err := e.tel.Metrics.StartMetricsServer()
				if err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				e.log.WithField("addr", metricsAddr).Info("Serving metrics")
			}

			if eventLevel != "" {
				streamEvents(e.tel.Events, cmd.ErrOrStderr(), eventLevel)
			}

			w := &docWatcher{env: e, path: args[0], out: cmd.OutOrStdout()}
			if err := w.reload(ctx); err != nil {
				return err
			}
			return w.run(ctx, delay)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&delay, "debounce", 200*time.Millisecond, "wait this long after the last change before reloading")
	cmd.Flags().StringVar(&eventLevel, "events", "", "write events at or above this level (info, warning, error) to stderr as JSON lines")

	return cmd
}

// docWatcher reloads one workbook document and reports value changes
// between loads.
type docWatcher struct {
	env  *env
	path string
	out  io.Writer

	// values maps Sheet!A1 names of formula cells to displayed values.
	values map[string]string
}

// reload loads and recalculates the document and prints changed cells.
func (w *docWatcher) reload(ctx context.Context) error {
	res, err := w.env.load(ctx, w.path)
	if err != nil {
		return err
	}
	if _, err := w.env.recalc(ctx, res.Workbook); err != nil {
		return err
	}

	next := make(map[string]string)
	for _, r := range formulaResults(res.Workbook, nil) {
		next[r.Cell] = r.Value
		if old, ok := w.values[r.Cell]; w.values != nil && (!ok || old != r.Value) {
			if _, err := fmt.Fprintf(w.out, "%s: %s -> %s\n", r.Cell, old, r.Value); err != nil {
				return err
			}
		}
	}
	first := w.values == nil
	w.values = next

	if first {
		return writeResults(w.out, formulaResults(res.Workbook, nil))
	}
	if err := w.env.tel.Events.PublishWorkbookReloaded(w.path); err != nil {
		w.env.log.WithError(err).Warn("Failed to publish reload event")
	}
	return nil
}

// run watches the document's directory until ctx is done. Directories
// are watched so that editors which replace the file are followed.
func (w *docWatcher) run(ctx context.Context, delay time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.env.log.WithField("path", w.path).Info("Watching workbook document")

	timer := time.NewTimer(delay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.env.log.WithFields(map[string]interface{}{
				"file": event.Name,
				"op":   event.Op.String(),
			}).Debug("Workbook document changed")
			timer.Reset(delay)

		case <-timer.C:
			if err := w.reload(ctx); err != nil {
				w.env.log.WithError(err).Error("Failed to reload workbook document")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.env.log.WithError(err).Error("Watcher error")
		}
	}
}

// streamEvents writes published events at or above minLevel to w, one
// JSON object per line.
func streamEvents(ep *telemetry.EventPublisher, w io.Writer, minLevel string) {
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	ep.Subscribe(func(ev telemetry.Event) {
		mu.Lock()
		defer mu.Unlock()
		_ = enc.Encode(ev)
	}, telemetry.FilterByLevel(minLevel))
}
