package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// SEOResult reports the presence of the basic on-page SEO elements.
type SEOResult struct {
	Title            string `json:"title,omitempty" bson:"title,omitempty"`
	HasTitle         bool   `json:"has_title" bson:"has_title"`
	HasDescription   bool   `json:"has_description" bson:"has_description"`
	HasH1            bool   `json:"has_h1" bson:"has_h1"`
	HasCanonical     bool   `json:"has_canonical" bson:"has_canonical"`
	HasRobotsNoindex bool   `json:"has_robots_noindex" bson:"has_robots_noindex"`
}

var titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// checkSEO fetches the page and looks for the elements a crawler cares
// about. This is a shallow pass: full HTML analysis lives outside the core.
func (f *fetcher) checkSEO(ctx context.Context, target Target) (any, error) {
	status, _, body, _, err := f.fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("target returned status %d", status)
	}

	html := strings.ToLower(string(body))
	result := SEOResult{
		HasDescription:   strings.Contains(html, `name="description"`),
		HasH1:            strings.Contains(html, "<h1"),
		HasCanonical:     strings.Contains(html, `rel="canonical"`),
		HasRobotsNoindex: strings.Contains(html, "noindex"),
	}

	if m := titlePattern.FindStringSubmatch(string(body)); m != nil {
		result.Title = strings.TrimSpace(m[1])
		result.HasTitle = result.Title != ""
	}

	return result, nil
}
