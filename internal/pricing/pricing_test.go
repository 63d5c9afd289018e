package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenuze/tokenuze/internal/types"
)

func TestConvertManifest(t *testing.T) {
	reasoning := 0.00003
	manifest := map[string]liteLLMModel{
		"gpt-5": {
			InputCostPerToken:   0.00000125,
			OutputCostPerToken:  0.00001,
			CacheReadCost:       0.000000125,
			ReasoningOutputCost: &reasoning,
		},
		"free-model": {},
	}

	pm := ConvertManifest(manifest)
	require.Contains(t, pm, "gpt-5")
	assert.NotContains(t, pm, "free-model")

	entry := pm["gpt-5"]
	assert.InDelta(t, 1.25, entry.InputCostPerMillion, 1e-9)
	assert.InDelta(t, 10, entry.OutputCostPerMillion, 1e-9)
	assert.InDelta(t, 0.125, entry.CachedInputCostPerMillion, 1e-9)
	require.NotNil(t, entry.ReasoningOutputCostPerMillion)
	assert.InDelta(t, 30, *entry.ReasoningOutputCostPerMillion, 1e-9)
}

func TestLookup(t *testing.T) {
	pm := types.PricingMap{
		"gpt-5":                    {InputCostPerMillion: 1.25},
		"claude-sonnet-4-5":        {InputCostPerMillion: 3},
		"gemini-2.5-pro":           {InputCostPerMillion: 1.25},
		"anthropic/claude-3-haiku": {InputCostPerMillion: 0.25},
	}

	// exact
	_, ok := Lookup(pm, "gpt-5")
	assert.True(t, ok)

	// provider prefix stripped
	entry, ok := Lookup(pm, "openai/gpt-5")
	require.True(t, ok)
	assert.Equal(t, 1.25, entry.InputCostPerMillion)

	// normalized alias
	entry, ok = Lookup(pm, "claude_sonnet_4_5")
	require.True(t, ok)
	assert.Equal(t, 3.0, entry.InputCostPerMillion)

	_, ok = Lookup(pm, "unpriced-model")
	assert.False(t, ok)
}

// redirectTransport sends every request to the test server instead of the
// manifest host.
type redirectTransport struct {
	target *url.URL
}

func (rt redirectTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

func TestFetchRemoteDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	client := &http.Client{Transport: redirectTransport{target: target}}

	// the manifest request lands on the test server, which answers 500; a
	// failing fetch must return an empty map, never an error that could
	// stop the run
	pm := FetchRemote(context.Background(), client)
	assert.NotNil(t, pm)
	assert.Empty(t, pm)
}
