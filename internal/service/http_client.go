package service

import (
	"net/http"
	"time"
)

// NewHTTPClient builds the pooled HTTP client shared by the outbound checks.
// The per-attempt deadline comes from the check context; the client timeout
// is only a backstop.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}
