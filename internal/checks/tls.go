package checks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/oliveagle/jsonpath"

	"github.com/talonscan/talon/internal/model"
)

// TLSResult is the certificate assessment extracted from the sidecar.
type TLSResult struct {
	Valid     bool   `json:"valid" bson:"valid"`
	Issuer    string `json:"issuer,omitempty" bson:"issuer,omitempty"`
	ValidDays int    `json:"valid_days" bson:"valid_days"`
}

// newTLSCheck builds the TLS check, which delegates certificate inspection
// to the SSL sidecar service (POST /api/check-ssl with a host list) and
// extracts the fields it needs from the sidecar's JSON with JSONPath.
func newTLSCheck(client *http.Client, sidecarURL string) Func {
	return func(ctx context.Context, target Target) (any, error) {
		payload, err := json.Marshal(map[string]any{"hosts": []string{target.Host}})
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sidecarURL+"/api/check-ssl", bytes.NewBuffer(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("tls sidecar returned status %d", resp.StatusCode)
		}

		var data any
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, fmt.Errorf("tls sidecar returned invalid JSON: %w", err)
		}

		if ok, err := jsonpath.JsonPathLookup(data, "$.success"); err != nil || ok != true {
			return nil, model.NewCheckError(model.CodeCheckError, "tls sidecar reported failure", true)
		}

		return extractTLSResult(data)
	}
}

func extractTLSResult(data any) (*TLSResult, error) {
	result := &TLSResult{}

	if v, err := jsonpath.JsonPathLookup(data, "$.results[0].valid"); err == nil {
		if valid, ok := v.(bool); ok {
			result.Valid = valid
		}
	}
	if v, err := jsonpath.JsonPathLookup(data, "$.results[0].issuer"); err == nil {
		if issuer, ok := v.(string); ok {
			result.Issuer = issuer
		}
	}
	if v, err := jsonpath.JsonPathLookup(data, "$.results[0].valid_days"); err == nil {
		if days, ok := v.(float64); ok {
			result.ValidDays = int(days)
		}
	}

	return result, nil
}
