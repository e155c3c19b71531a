package checks

import "context"

// HeadersResult is the security-header assessment for a target.
type HeadersResult struct {
	StatusCode int               `json:"status_code" bson:"status_code"`
	Present    map[string]string `json:"present" bson:"present"`
	Missing    []string          `json:"missing" bson:"missing"`
	Grade      string            `json:"grade" bson:"grade"`
}

var securityHeaders = []string{
	"Strict-Transport-Security",
	"Content-Security-Policy",
	"X-Content-Type-Options",
	"X-Frame-Options",
	"Referrer-Policy",
}

// checkHeaders fetches the target and grades its security response headers.
func (f *fetcher) checkHeaders(ctx context.Context, target Target) (any, error) {
	status, header, _, _, err := f.fetch(ctx, target)
	if err != nil {
		return nil, err
	}

	result := HeadersResult{
		StatusCode: status,
		Present:    make(map[string]string),
	}
	for _, name := range securityHeaders {
		if value := header.Get(name); value != "" {
			result.Present[name] = value
		} else {
			result.Missing = append(result.Missing, name)
		}
	}
	result.Grade = headerGrade(len(result.Present))
	return result, nil
}

func headerGrade(present int) string {
	switch {
	case present >= len(securityHeaders):
		return "A"
	case present >= 4:
		return "B"
	case present >= 2:
		return "C"
	case present >= 1:
		return "D"
	default:
		return "F"
	}
}
