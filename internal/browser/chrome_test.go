package browser

import (
	"slices"
	"testing"
)

func TestMediaType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"text/html", "text/html"},
		{"text/html; charset=utf-8", "text/html"},
		{"Application/JSON", "application/json"},
		{"", ""},
		{"broken;;", "broken"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := mediaType(tt.in); got != tt.want {
				t.Errorf("mediaType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBlockedResourcePatterns(t *testing.T) {
	t.Parallel()

	got := BlockedResourcePatterns()
	for _, want := range []string{"*.png", "*.woff2", "*google-analytics.com*", "*sentry.io*"} {
		if !slices.Contains(got, want) {
			t.Errorf("BlockedResourcePatterns() missing %q", want)
		}
	}

	got[0] = "mutated"
	if BlockedResourcePatterns()[0] == "mutated" {
		t.Error("BlockedResourcePatterns() returned the shared slice")
	}
}
