package types

// PricingEntry holds USD prices per million tokens for one model.
type PricingEntry struct {
	InputCostPerMillion           float64
	CacheCreationCostPerMillion   float64
	CachedInputCostPerMillion     float64
	OutputCostPerMillion          float64
	ReasoningOutputCostPerMillion *float64 // nil → falls back to output cost
}

// PricingMap maps model names to pricing. Fallback tables never overwrite a
// present entry.
type PricingMap map[string]PricingEntry

// Merge inserts entries from other only where the key is absent.
func (m PricingMap) Merge(other map[string]PricingEntry) {
	for name, entry := range other {
		if _, ok := m[name]; !ok {
			m[name] = entry
		}
	}
}

// CostUSD prices a usage against this entry.
func (p PricingEntry) CostUSD(u TokenUsage) float64 {
	reasoning := p.OutputCostPerMillion
	if p.ReasoningOutputCostPerMillion != nil {
		reasoning = *p.ReasoningOutputCostPerMillion
	}
	return float64(u.InputTokens)*p.InputCostPerMillion/1e6 +
		float64(u.CacheCreationInputTokens)*p.CacheCreationCostPerMillion/1e6 +
		float64(u.CachedInputTokens)*p.CachedInputCostPerMillion/1e6 +
		float64(u.OutputTokens)*p.OutputCostPerMillion/1e6 +
		float64(u.ReasoningOutputTokens)*reasoning/1e6
}

// ModelSummary is the per-model slice of a day, session, or week.
type ModelSummary struct {
	Name               string
	Usage              TokenUsage
	DisplayInputTokens uint64
	CostUSD            float64
	PricingAvailable   bool
	IsFallback         bool
}

// DailySummary aggregates all events sharing one local ISO date.
// Invariant: Usage equals the sum of the per-model usages.
type DailySummary struct {
	ISODate            string
	DisplayDate        string // "Nov 2, 2025"
	Usage              TokenUsage
	DisplayInputTokens uint64
	CostUSD            float64
	Models             map[string]*ModelSummary
	MissingPricing     map[string]struct{}
}

// SessionSummary aggregates all events sharing one session ID.
type SessionSummary struct {
	SessionID          string
	FirstSeenTimestamp string
	LastSeenTimestamp  string
	Usage              TokenUsage
	DisplayInputTokens uint64
	CostUSD            float64
	ModelBreakdown     map[string]*ModelSummary
}

// WeeklySummary aggregates all events sharing one ISO week.
type WeeklySummary struct {
	ISOYear            int
	ISOWeek            int
	StartDate          string
	EndDate            string
	Usage              TokenUsage
	DisplayInputTokens uint64
	CostUSD            float64
	ModelBreakdown     map[string]*ModelSummary
	MissingPricing     map[string]struct{}
}

// SummaryTotals is the cross-day roll-up.
type SummaryTotals struct {
	Usage              TokenUsage
	DisplayInputTokens uint64
	CostUSD            float64
	MissingPricing     map[string]struct{}
}
