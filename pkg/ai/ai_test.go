package ai

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestParseSuggestion(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		name    string
		raw     string
		want    *ListingSuggestion
		wantErr bool
	}{
		{
			name: "plain JSON",
			raw:  `{"title": "Vintage Camera", "description": "A 35mm film camera."}`,
			want: &ListingSuggestion{Title: "Vintage Camera", Description: "A 35mm film camera."},
		},
		{
			name: "fenced JSON",
			raw:  "```json\n{\"title\": \"Vintage Camera\", \"description\": \"A 35mm film camera.\"}\n```",
			want: &ListingSuggestion{Title: "Vintage Camera", Description: "A 35mm film camera."},
		},
		{
			name: "bare fence",
			raw:  "```\n{\"title\": \"Vintage Camera\", \"description\": \"\"}\n```",
			want: &ListingSuggestion{Title: "Vintage Camera"},
		},
		{
			name: "title only",
			raw:  `{"title": "Vintage Camera"}`,
			want: &ListingSuggestion{Title: "Vintage Camera"},
		},
		{
			// A provider that extracts nothing still answers successfully.
			name: "empty object",
			raw:  `{}`,
			want: &ListingSuggestion{},
		},
		{
			name: "declared no content",
			raw:  `{"title": "", "description": ""}`,
			want: &ListingSuggestion{},
		},
		{
			name:    "not JSON",
			raw:     "a very nice camera",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			got, err := ParseSuggestion(tt.raw)
			if tt.wantErr {
				c.Check(err, qt.IsNotNil)
				return
			}
			c.Assert(err, qt.IsNil)
			c.Check(got, qt.DeepEquals, tt.want)
		})
	}
}
