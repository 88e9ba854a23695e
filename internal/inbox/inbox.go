// Package inbox polls a directory for request files and hands each new file
// to a handler exactly once.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/quote-engine/internal/utils"
)

// StateFile keeps the names of processed files inside the inbox directory.
const StateFile = ".processed.json"

const (
	DefaultInterval    = time.Minute
	DefaultSettleDelay = 5 * time.Second
)

// Handler processes one request file. A file is marked processed only when
// Handler returns nil.
type Handler func(ctx context.Context, name string, data []byte) error

// Observer is told about every finished poll.
type Observer interface {
	ObservePoll(at time.Time, processed, failed int)
}

// Status describes the watcher since it was created.
type Status struct {
	Running   bool      `json:"running"`
	LastPoll  time.Time `json:"last_poll"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	LastError string    `json:"last_error,omitempty"`
}

type Option func(*Watcher)

// WithSettleDelay sets how old an unchanged file must be before it is read.
// Younger files are read once their size and modification time are the same
// on two consecutive polls.
func WithSettleDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.settle = d
		}
	}
}

func WithObserver(o Observer) Option {
	return func(w *Watcher) {
		w.observer = o
	}
}

type state struct {
	Processed map[string]time.Time `json:"processed"`
}

type stamp struct {
	size    int64
	modTime time.Time
}

type Watcher struct {
	dir      string
	interval time.Duration
	settle   time.Duration
	handler  Handler
	observer Observer
	logger   *zap.Logger
	now      func() time.Time

	state state
	// seen holds the stamps of unprocessed files from the previous poll.
	seen map[string]stamp

	mu     sync.Mutex
	status Status
}

// New prepares a watcher for dir, creating the directory when missing and
// loading any previously saved processed set.
func New(dir string, interval time.Duration, handler Handler, logger *zap.Logger, opts ...Option) (*Watcher, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("inbox directory is required")
	}
	if handler == nil {
		return nil, errors.New("inbox handler is required")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox directory: %w", err)
	}

	w := &Watcher{
		dir:      dir,
		interval: interval,
		settle:   DefaultSettleDelay,
		handler:  handler,
		logger:   logger.With(zap.String("inbox", dir)),
		now:      time.Now,
		state:    state{Processed: map[string]time.Time{}},
		seen:     map[string]stamp{},
	}

	for _, opt := range opts {
		opt(w)
	}

	if err := w.load(); err != nil {
		return nil, err
	}

	return w, nil
}

// Run polls until ctx is cancelled. Poll errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	w.setRunning(true)
	defer w.setRunning(false)

	w.logger.Info("watching inbox",
		zap.Duration("interval", w.interval),
		zap.Duration("settle_delay", w.settle),
	)

	for {
		if _, err := w.Poll(ctx); err != nil {
			w.logger.Error("polling inbox", zap.Error(err))
		}

		if err := utils.WaitFor(ctx, w.interval); err != nil {
			status := w.Status()
			w.logger.Info("stopped watching inbox",
				zap.String("reason", err.Error()),
				zap.Int("processed", status.Processed),
				zap.Int("failed", status.Failed),
			)
			return nil
		}
	}
}

// Poll handles every settled unprocessed file once, in name order, and
// returns how many were processed successfully.
func (w *Watcher) Poll(ctx context.Context) (int, error) {
	processed, failed := 0, 0
	var lastErr error

	defer func() {
		w.finishPoll(processed, failed, lastErr)
	}()

	names, err := w.pending()
	if err != nil {
		lastErr = err
		return 0, err
	}

	if len(names) > 0 {
		w.logger.Info("found new requests", zap.Int("count", len(names)))
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return processed, nil
		}

		data, err := os.ReadFile(filepath.Join(w.dir, name))
		if err != nil {
			w.logger.Warn("reading request file", zap.String("file", name), zap.Error(err))
			failed++
			lastErr = err
			continue
		}

		if err := w.handler(ctx, name, data); err != nil {
			w.logger.Warn("request was not processed, will retry", zap.String("file", name), zap.Error(err))
			failed++
			lastErr = err
			continue
		}

		w.state.Processed[name] = w.now().UTC()
		delete(w.seen, name)
		if err := w.save(); err != nil {
			lastErr = err
			return processed, err
		}
		processed++
	}

	return processed, nil
}

// Processed reports whether name was already handled.
func (w *Watcher) Processed(name string) bool {
	_, ok := w.state.Processed[name]
	return ok
}

// Status returns a snapshot that is safe to read while Run is going.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *Watcher) setRunning(running bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.Running = running
}

func (w *Watcher) finishPoll(processed, failed int, err error) {
	at := w.now().UTC()

	w.mu.Lock()
	w.status.LastPoll = at
	w.status.Processed += processed
	w.status.Failed += failed
	if err != nil {
		w.status.LastError = err.Error()
	}
	w.mu.Unlock()

	if w.observer != nil {
		w.observer.ObservePoll(at, processed, failed)
	}
}

// pending lists unprocessed files that are no longer being written.
func (w *Watcher) pending() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}

	now := w.now()
	seen := make(map[string]stamp, len(entries))
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || w.Processed(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}

		current := stamp{size: info.Size(), modTime: info.ModTime()}
		seen[name] = current

		previous, ok := w.seen[name]
		unchanged := ok && previous.size == current.size && previous.modTime.Equal(current.modTime)
		if !unchanged && w.settle > 0 && now.Sub(current.modTime) < w.settle {
			w.logger.Debug("request file is still changing", zap.String("file", name), zap.Int64("size", current.size))
			continue
		}

		names = append(names, name)
	}
	w.seen = seen
	sort.Strings(names)

	return names, nil
}

func (w *Watcher) load() error {
	data, err := os.ReadFile(filepath.Join(w.dir, StateFile))
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(strings.TrimSpace(string(data))) == 0) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read inbox state: %w", err)
	}

	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parse inbox state: %w", err)
	}
	if s.Processed != nil {
		w.state = s
	}

	return nil
}

func (w *Watcher) save() error {
	data, err := json.MarshalIndent(w.state, "", "  ")
	if err != nil {
		return err
	}

	tmp := filepath.Join(w.dir, StateFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write inbox state: %w", err)
	}

	if err := os.Rename(tmp, filepath.Join(w.dir, StateFile)); err != nil {
		return fmt.Errorf("write inbox state: %w", err)
	}

	return nil
}
