package provider

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/tokenuze/tokenuze/internal/types"
)

// Config is the static description of one provider specialization. The
// framework derives the scan, stream, and pricing-registration operations
// from it; only ParseSession is provider-specific code.
type Config struct {
	// Name is the provider's CLI-facing identifier ("codex", "claude", ...).
	Name string

	// SessionsDirSuffix is joined onto $HOME to locate the session logs.
	SessionsDirSuffix string

	// LegacyFallbackModel is attributed to usage events whose model is
	// unknown. Empty means such events are dropped.
	LegacyFallbackModel string

	// FallbackPricing is the static USD-per-million table merged into the
	// pricing map for models the remote manifest does not cover.
	FallbackPricing map[string]types.PricingEntry

	// SessionFileExt selects files during the recursive walk (".jsonl",
	// ".json", ".db").
	SessionFileExt string

	// CachedCountsOverlapInput is true when the provider's input counter
	// already includes cached tokens (Codex); false when cached tokens are
	// additive to input (Claude, Gemini, Zed, ...).
	CachedCountsOverlapInput bool

	// RequiresDeduper allocates a per-file MessageDeduper for providers
	// whose logs repeat records on re-processing (Claude).
	RequiresDeduper bool

	// ParseSession reads one session file and appends events to out.
	ParseSession ParseSessionFunc
}

// ParseSessionFunc parses a single session file. sessionID is the file name
// without its extension; parsers may override it from the log's own session
// field. Implementations append events via out.Emit, which normalizes them.
type ParseSessionFunc func(ctx *ParseContext, sessionID, path string, out *EventSink) error

// ParseContext carries the per-file parsing environment.
type ParseContext struct {
	Provider                 string
	CachedCountsOverlapInput bool
	LegacyFallbackModel      string
	TZOffsetMinutes          int
	Deduper                  *types.MessageDeduper
	Logger                   *slog.Logger
}

// ResolveModel applies the model carry-forward rule: a non-empty extracted
// name updates state and wins; otherwise the carried model; otherwise the
// provider's legacy fallback. Returns ok=false when no name can be
// attributed (the event is dropped).
func (c *ParseContext) ResolveModel(state *types.ModelState, extracted string) (name string, isFallback, ok bool) {
	extracted = strings.TrimSpace(extracted)
	if extracted != "" {
		state.Current = extracted
		state.IsFallback = false
		return extracted, false, true
	}
	if state.Current != "" {
		return state.Current, state.IsFallback, true
	}
	if c.LegacyFallbackModel != "" {
		state.Current = c.LegacyFallbackModel
		state.IsFallback = true
		return c.LegacyFallbackModel, true, true
	}
	return "", false, false
}

// NormalizeUsage applies the provider's cached/input overlap rule and fixes
// the event's display input. In overlap mode the raw input IS the display
// figure and the stored input is clamped below it; in additive mode display
// input is the sum of input, cached, and cache-creation tokens. Idempotent.
func (c *ParseContext) NormalizeUsage(ev *types.TokenUsageEvent) {
	u := &ev.Usage
	if c.CachedCountsOverlapInput {
		if ev.DisplayInputTokens == 0 {
			ev.DisplayInputTokens = u.InputTokens
		}
		overlap := types.SatAdd(u.CachedInputTokens, u.CacheCreationInputTokens)
		u.InputTokens = types.SatSub(ev.DisplayInputTokens, overlap)
	} else {
		ev.DisplayInputTokens = types.SatAdd(types.SatAdd(u.InputTokens, u.CachedInputTokens), u.CacheCreationInputTokens)
	}
}

// EventSink buffers the events of one session file before they are funneled
// into the shared consumer.
type EventSink struct {
	ctx    *ParseContext
	events []types.TokenUsageEvent
}

// NewEventSink builds a sink bound to a parse context.
func NewEventSink(ctx *ParseContext) *EventSink {
	return &EventSink{ctx: ctx}
}

// Events returns everything emitted so far.
func (s *EventSink) Events() []types.TokenUsageEvent {
	return s.events
}

// Emit normalizes and appends one event. Events whose normalized usage is
// entirely zero are dropped.
func (s *EventSink) Emit(ev types.TokenUsageEvent) {
	s.ctx.NormalizeUsage(&ev)
	if ev.Usage.IsZero() {
		return
	}
	s.events = append(s.events, ev)
}

// EventConsumer serializes event delivery from parser workers into a single
// sink function.
type EventConsumer struct {
	mu   sync.Mutex
	sink func(types.TokenUsageEvent)
}

// NewEventConsumer wraps sink in a mutex-guarded consumer.
func NewEventConsumer(sink func(types.TokenUsageEvent)) *EventConsumer {
	return &EventConsumer{sink: sink}
}

// ConsumeAll delivers a batch under the mutex.
func (c *EventConsumer) ConsumeAll(events []types.TokenUsageEvent) {
	if len(events) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range events {
		c.sink(ev)
	}
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Config{}
)

// Register adds a provider specialization. Specializations call this from
// their init functions.
func Register(cfg *Config) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[cfg.Name] = cfg
}

// All returns every registered provider, sorted by name.
func All() []*Config {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Config, 0, len(names))
	for _, name := range names {
		out = append(out, registry[name])
	}
	return out
}

// Lookup finds a provider by name.
func Lookup(name string) (*Config, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	cfg, ok := registry[name]
	return cfg, ok
}

// LoadPricingData merges the provider's static fallback table into the
// pricing map, inserting only where a model has no entry yet.
func (cfg *Config) LoadPricingData(pm types.PricingMap) {
	pm.Merge(cfg.FallbackPricing)
}
