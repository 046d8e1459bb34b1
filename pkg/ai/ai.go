// Package ai defines the content analysis interface used by the enrichment
// pipeline and its shared types.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ListingSuggestion is the marketing copy generated from a listing image.
type ListingSuggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Analyzer generates listing content suggestions from an image.
type Analyzer interface {
	// AnalyzeListingImage inspects a product photo and suggests a title and
	// description for the listing.
	AnalyzeListingImage(ctx context.Context, image []byte, contentType string) (*ListingSuggestion, error)
	// Name returns the provider name.
	Name() string
	// Close releases provider resources.
	Close() error
}

// ParseSuggestion decodes a model response into a suggestion. Models often
// wrap JSON in markdown fences even when instructed not to, so those are
// stripped before decoding. A provider that extracted nothing from the image
// yields an empty suggestion: that is a valid result, not an error, and the
// pipeline continues without it.
func ParseSuggestion(raw string) (*ListingSuggestion, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var suggestion ListingSuggestion
	if err := json.Unmarshal([]byte(cleaned), &suggestion); err != nil {
		return nil, fmt.Errorf("decoding suggestion %q: %w", raw, err)
	}
	return &suggestion, nil
}
