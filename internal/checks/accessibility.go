package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// AccessibilityResult is a shallow accessibility pass over the page markup.
type AccessibilityResult struct {
	Images        int  `json:"images" bson:"images"`
	ImagesWithAlt int  `json:"images_with_alt" bson:"images_with_alt"`
	HasLang       bool `json:"has_lang" bson:"has_lang"`
	HasViewport   bool `json:"has_viewport" bson:"has_viewport"`
	HasSkipLink   bool `json:"has_skip_link" bson:"has_skip_link"`
}

var imgTagPattern = regexp.MustCompile(`(?i)<img\b[^>]*>`)
var altAttrPattern = regexp.MustCompile(`(?i)\balt\s*=`)

// checkAccessibility counts images without alt text and looks for the page
// level markers assistive tech relies on.
func (f *fetcher) checkAccessibility(ctx context.Context, target Target) (any, error) {
	status, _, body, _, err := f.fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("target returned status %d", status)
	}

	html := string(body)
	lower := strings.ToLower(html)

	result := AccessibilityResult{
		HasLang:     strings.Contains(lower, "<html lang=") || strings.Contains(lower, `<html lang =`),
		HasViewport: strings.Contains(lower, `name="viewport"`),
		HasSkipLink: strings.Contains(lower, "skip to content") || strings.Contains(lower, "#main-content"),
	}

	for _, tag := range imgTagPattern.FindAllString(html, -1) {
		result.Images++
		if altAttrPattern.MatchString(tag) {
			result.ImagesWithAlt++
		}
	}

	return result, nil
}
