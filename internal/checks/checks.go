// Package checks holds the individual analysis checks a scan fans out to.
// The orchestrator treats each check as an opaque async function: it calls
// it once per attempt and only cares about the outcome and timing.
package checks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/talonscan/talon/internal/model"
)

// Target is the resolved scan target handed to every check.
type Target struct {
	// URL is the normalized target URL.
	URL string
	// Host is the bare hostname, for checks that work below HTTP.
	Host string
}

// NewTarget parses a normalized URL into a check target.
func NewTarget(normalizedURL string) (Target, error) {
	u, err := url.Parse(normalizedURL)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	return Target{URL: normalizedURL, Host: u.Hostname()}, nil
}

// Func runs one check attempt. Implementations must be safe to call
// concurrently and repeatedly: a retried attempt gets a fresh call.
type Func func(ctx context.Context, target Target) (any, error)

// Table maps every known check name to its function. Built once at startup
// and validated complete, so an unknown check name is a startup error rather
// than a runtime surprise.
type Table struct {
	funcs map[model.CheckName]Func
}

// NewTable builds the dispatch table for the built-in checks.
func NewTable(client *http.Client, tlsSidecarURL string) (*Table, error) {
	f := &fetcher{client: client}

	return NewTableWith(map[model.CheckName]Func{
		model.CheckTLS:           newTLSCheck(client, tlsSidecarURL),
		model.CheckHeaders:       f.checkHeaders,
		model.CheckDNS:           checkDNS,
		model.CheckPerformance:   f.checkPerformance,
		model.CheckSEO:           f.checkSEO,
		model.CheckAccessibility: f.checkAccessibility,
	})
}

// NewTableWith builds a table from an explicit function map. The map must
// cover the full check set exactly; anything else is a wiring error.
func NewTableWith(funcs map[model.CheckName]Func) (*Table, error) {
	for _, name := range model.AllChecks() {
		if funcs[name] == nil {
			return nil, fmt.Errorf("no check function registered for %q", name)
		}
	}
	if len(funcs) != len(model.AllChecks()) {
		return nil, fmt.Errorf("dispatch table has %d entries, want %d", len(funcs), len(model.AllChecks()))
	}
	return &Table{funcs: funcs}, nil
}

// Get returns the function for a check name.
func (t *Table) Get(name model.CheckName) (Func, bool) {
	fn, ok := t.funcs[name]
	return fn, ok
}

// fetcher shares the HTTP client across page-fetching checks.
type fetcher struct {
	client *http.Client
}

const maxBodyBytes = 1024 * 1024

// fetch performs a GET against the target and returns status, headers, body
// (capped at 1MB) and the total request duration.
func (f *fetcher) fetch(ctx context.Context, target Target) (int, http.Header, []byte, time.Duration, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return 0, nil, nil, 0, model.NewCheckError(model.CodeInvalidTarget, err.Error(), false)
	}
	req.Header.Set("User-Agent", "talon-scan/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, nil, time.Since(start), err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, resp.Header, nil, time.Since(start), err
	}

	return resp.StatusCode, resp.Header, body, time.Since(start), nil
}
