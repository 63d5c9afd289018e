// Package uploader posts per-provider usage reports to the dashboard API.
// Transport failures print to stderr but never fail the process; only a
// missing API key does.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tokenuze/tokenuze/internal/calculator"
	"github.com/tokenuze/tokenuze/internal/output"
	"github.com/tokenuze/tokenuze/internal/provider"
	"github.com/tokenuze/tokenuze/internal/types"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	reportPath     = "/api/usage/report"
	requestTimeout = 30 * time.Second
)

// ProviderUpload is one provider's slice of the report payload.
type ProviderUpload struct {
	Name            string                  `json:"name"`
	DailySummary    output.DailyDocument    `json:"daily_summary_json"`
	SessionsSummary output.SessionsDocument `json:"sessions_summary_json"`
	WeeklySummary   output.WeeklyDocument   `json:"weekly_summary_json"`
}

// Payload is the report request body.
type Payload struct {
	MachineID             string           `json:"machine_id"`
	TimezoneOffsetMinutes int              `json:"timezone_offset_minutes"`
	Providers             []ProviderUpload `json:"providers"`
}

// Uploader drives report builds and the POST.
type Uploader struct {
	BaseURL   string
	APIKey    string
	MachineID string
	Out       io.Writer
}

// BuildPayload runs the aggregation pipeline once per provider so each
// upload slice reflects that provider in isolation.
func (u *Uploader) BuildPayload(providers []*provider.Config, opts *provider.Options, pm types.PricingMap, calcOpts calculator.Options) Payload {
	payload := Payload{
		MachineID:             u.MachineID,
		TimezoneOffsetMinutes: opts.TZOffsetMinutes,
		Providers:             make([]ProviderUpload, 0, len(providers)),
	}
	for _, cfg := range providers {
		builder := calculator.NewBuilder()
		cfg.StreamEvents(opts, builder.Add)
		res := builder.Build(pm, calcOpts)
		payload.Providers = append(payload.Providers, ProviderUpload{
			Name:            cfg.Name,
			DailySummary:    output.BuildDailyDocument(res),
			SessionsSummary: output.BuildSessionsDocument(res),
			WeeklySummary:   output.BuildWeeklyDocument(res),
		})
	}
	return payload
}

// Send posts the payload and prints the outcome. The returned error is
// non-nil only for a missing API key; every HTTP outcome maps to a printed
// line and a zero exit.
func (u *Uploader) Send(ctx context.Context, payload Payload) error {
	if u.APIKey == "" {
		fmt.Fprintln(u.Out, "DASHBOARD_API_KEY is not set.")
		fmt.Fprintln(u.Out, "Export an API key from your dashboard and set it before uploading:")
		fmt.Fprintln(u.Out, "  export DASHBOARD_API_KEY=<key>")
		return types.ErrMissingAPIKey
	}

	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(u.Out, "Failed to encode report: %v\n", err)
		return nil
	}

	base := u.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	url := strings.TrimRight(base, "/") + reportPath

	resp, err := u.post(ctx, defaultClient(), url, body)
	if err != nil && isCNAMEAnomaly(err) {
		// Some resolvers mangle CNAME chains the pure-Go resolver rejects;
		// the libc resolver accepts them.
		resp, err = u.post(ctx, libcResolverClient(), url, body)
	}
	if err != nil {
		fmt.Fprintf(u.Out, "Upload failed: %v\n", err)
		return nil
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusOK:
		fmt.Fprintln(u.Out, "Upload succeeded")
	case resp.StatusCode == http.StatusUnauthorized:
		fmt.Fprintln(u.Out, "Authentication failed")
	case resp.StatusCode == http.StatusUnprocessableEntity:
		fmt.Fprintln(u.Out, "Data validation error")
	case resp.StatusCode >= 500 && resp.StatusCode < 600:
		fmt.Fprintln(u.Out, "Server error")
	default:
		fmt.Fprintf(u.Out, "Failed (HTTP %d)\n", resp.StatusCode)
	}
	return nil
}

func (u *Uploader) post(ctx context.Context, client *http.Client, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", u.APIKey)
	return client.Do(req)
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// libcResolverClient dials through the cgo/libc resolver instead of the
// pure-Go one.
func libcResolverClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:  requestTimeout,
		Resolver: &net.Resolver{PreferGo: false},
	}
	return &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			DialContext: dialer.DialContext,
		},
	}
}

func isCNAMEAnomaly(err error) bool {
	return err != nil && strings.Contains(err.Error(), "invalid CNAME")
}
