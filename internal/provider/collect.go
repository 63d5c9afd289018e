package provider

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/tokenuze/tokenuze/internal/types"
)

// dedupeCapacityHint sizes the per-file deduper; session files rarely carry
// more assistant records than this, and the set grows when they do.
const dedupeCapacityHint = 4096

// Options carries the shared collection environment.
type Options struct {
	HomeDir         string // defaults to os.UserHomeDir
	TZOffsetMinutes int
	Logger          *slog.Logger
	Progress        func(provider string, done, total int)
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Options) home() string {
	if o.HomeDir != "" {
		return o.HomeDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// SessionFiles walks the provider's sessions directory and returns every
// file matching the configured extension. A missing directory is not an
// error; the provider is simply skipped.
func (cfg *Config) SessionFiles(opts *Options) ([]string, error) {
	home := opts.home()
	if home == "" {
		return nil, types.ErrDataNotFound
	}
	root := filepath.Join(home, filepath.FromSlash(cfg.SessionsDirSuffix))
	if _, err := os.Stat(root); err != nil {
		return nil, types.ErrDataNotFound
	}

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !info.IsDir() && strings.EqualFold(filepath.Ext(path), cfg.SessionFileExt) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Collect parses every session file of this provider with a bounded worker
// pool and funnels the events into consumer. Per-file failures are logged
// and skipped; only a missing sessions directory aborts (and that silently,
// with an info log).
func (cfg *Config) Collect(opts *Options, consumer *EventConsumer) {
	files, err := cfg.SessionFiles(opts)
	if err != nil {
		opts.logger().Info("provider skipped", "provider", cfg.Name, "reason", err.Error())
		return
	}
	if len(files) == 0 {
		return
	}

	workers := maxWorkers()
	if workers > len(files) {
		workers = len(files)
	}

	jobs := make(chan string, len(files))
	var wg sync.WaitGroup
	var doneMu sync.Mutex
	done := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				events := cfg.parseOne(opts, path)
				consumer.ConsumeAll(events)
				if opts.Progress != nil {
					doneMu.Lock()
					done++
					n := done
					doneMu.Unlock()
					opts.Progress(cfg.Name, n, len(files))
				}
			}
		}()
	}

	for _, path := range files {
		jobs <- path
	}
	close(jobs)
	wg.Wait()
}

// StreamEvents is Collect with a caller-supplied sink; the uploader uses it
// to build per-provider reports in isolation.
func (cfg *Config) StreamEvents(opts *Options, sink func(types.TokenUsageEvent)) {
	cfg.Collect(opts, NewEventConsumer(sink))
}

func (cfg *Config) parseOne(opts *Options, path string) []types.TokenUsageEvent {
	ctx := &ParseContext{
		Provider:                 cfg.Name,
		CachedCountsOverlapInput: cfg.CachedCountsOverlapInput,
		LegacyFallbackModel:      cfg.LegacyFallbackModel,
		TZOffsetMinutes:          opts.TZOffsetMinutes,
		Logger:                   opts.logger(),
	}
	if cfg.RequiresDeduper {
		ctx.Deduper = types.NewMessageDeduper(dedupeCapacityHint)
	}

	sessionID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	sink := NewEventSink(ctx)
	if err := cfg.ParseSession(ctx, sessionID, path, sink); err != nil {
		ctx.Logger.Warn("session parse failed",
			"provider", cfg.Name, "path", path, "error", err)
	}
	return sink.events
}

func maxWorkers() int {
	n := runtime.NumCPU()
	if n > 8 {
		return 8
	}
	if n < 1 {
		return 1
	}
	return n
}
