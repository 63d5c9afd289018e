// Package pricing builds the model → USD price table the aggregation pass
// consumes. The remote LiteLLM manifest is merged first when it can be
// fetched; per-provider static fallbacks fill the gaps and never overwrite.
package pricing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tokenuze/tokenuze/internal/types"
)

const liteLLMManifestURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"

const fetchTimeout = 10 * time.Second

// liteLLMModel is the subset of the manifest schema we price from. Costs in
// the manifest are per token, not per million.
type liteLLMModel struct {
	InputCostPerToken   float64  `json:"input_cost_per_token"`
	OutputCostPerToken  float64  `json:"output_cost_per_token"`
	CacheCreationCost   float64  `json:"cache_creation_input_token_cost"`
	CacheReadCost       float64  `json:"cache_read_input_token_cost"`
	ReasoningOutputCost *float64 `json:"output_cost_per_reasoning_token"`
	LiteLLMProvider     string   `json:"litellm_provider"`
}

// FetchRemote downloads the LiteLLM manifest and converts it to per-million
// entries. Any failure returns an empty map: pricing always degrades to the
// static fallbacks, never to an error.
func FetchRemote(ctx context.Context, client *http.Client) types.PricingMap {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, liteLLMManifestURL, nil)
	if err != nil {
		return types.PricingMap{}
	}
	resp, err := client.Do(req)
	if err != nil {
		return types.PricingMap{}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.PricingMap{}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return types.PricingMap{}
	}

	var manifest map[string]liteLLMModel
	if err := json.Unmarshal(body, &manifest); err != nil {
		return types.PricingMap{}
	}

	return ConvertManifest(manifest)
}

// ConvertManifest maps manifest rows onto PricingEntry values.
func ConvertManifest(manifest map[string]liteLLMModel) types.PricingMap {
	pm := make(types.PricingMap, len(manifest))
	for name, m := range manifest {
		if m.InputCostPerToken == 0 && m.OutputCostPerToken == 0 {
			continue
		}
		entry := types.PricingEntry{
			InputCostPerMillion:         m.InputCostPerToken * 1e6,
			CacheCreationCostPerMillion: m.CacheCreationCost * 1e6,
			CachedInputCostPerMillion:   m.CacheReadCost * 1e6,
			OutputCostPerMillion:        m.OutputCostPerToken * 1e6,
		}
		if m.ReasoningOutputCost != nil {
			r := *m.ReasoningOutputCost * 1e6
			entry.ReasoningOutputCostPerMillion = &r
		}
		pm[name] = entry
	}
	return pm
}

// Lookup resolves a model name to its pricing: exact match first, then the
// name with its provider prefix stripped, then a normalized-alias scan.
func Lookup(pm types.PricingMap, model string) (types.PricingEntry, bool) {
	if entry, ok := pm[model]; ok {
		return entry, true
	}
	if i := strings.LastIndexByte(model, '/'); i >= 0 {
		if entry, ok := pm[model[i+1:]]; ok {
			return entry, true
		}
	}

	want := normalizeAlias(model)
	if want == "" {
		return types.PricingEntry{}, false
	}
	names := make([]string, 0, len(pm))
	for name := range pm {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if normalizeAlias(name) == want {
			return pm[name], true
		}
	}
	return types.PricingEntry{}, false
}

// normalizeAlias flattens a model name for fuzzy matching: lowercase, no
// separators, no provider prefix.
func normalizeAlias(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ToLower(name)
	var b strings.Builder
	for _, r := range name {
		if r == '-' || r == '_' || r == '.' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
