package crawler

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nao1215/docscrawl/internal/model"
)

func TestQualityReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"real content", strings.Repeat("word ", 40), ""},
		{"short but meaningful", "Release notes for version two", ""},
		{"empty", "", "empty page"},
		{"loading placeholder", "Loading Application, please wait", "application still loading"},
		{"cookie wall", "We use cookies. Accept?", "cookie banner only"},
		{"json object", `{"id": 1, "name": "guide"}`, "raw JSON response"},
		{"json array", `[{"id": 1}, {"id": 2}]`, "raw JSON response"},
		{"braces but not json", "{ this is prose }", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			page := &model.Page{}
			page.SetText(tt.text)
			if got := qualityReason(page, 10); got != tt.want {
				t.Errorf("qualityReason(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestQualityReason_MinWords(t *testing.T) {
	t.Parallel()

	page := &model.Page{}
	page.SetText("cookie settings for this documentation portal are described on this page in detail")
	if got := qualityReason(page, 10); got != "" {
		t.Errorf("qualityReason() = %q for a page above the word minimum", got)
	}
	if got := qualityReason(page, 50); got != "cookie banner only" {
		t.Errorf("qualityReason() with minWords 50 = %q", got)
	}
}

func TestIsHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/html", true},
		{"text/html; charset=utf-8", true},
		{"TEXT/HTML", true},
		{"text/plain", true},
		{"application/xhtml+xml", true},
		{"", true},
		{"application/pdf", false},
		{"application/json", false},
		{"image/png", false},
	}
	for _, tt := range tests {
		if got := isHTML(tt.contentType); got != tt.want {
			t.Errorf("isHTML(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", fmt.Errorf("%w: %w", ErrNavigationTimeout, errors.New("deadline")), "Timeout"},
		{"status", &StatusError{Code: 503}, "HTTP 503"},
		{"static status", &StatusError{Code: 404, Static: true}, "HTTP 404 (static)"},
		{"wrapped status", fmt.Errorf("load: %w", &StatusError{Code: 500}), "HTTP 500"},
		{"other", errors.New("connection refused"), "connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(tt.err); got != tt.want {
				t.Errorf("errorMessage() = %q, want %q", got, tt.want)
			}
		})
	}

	if !errors.Is(&StatusError{Code: 500}, ErrNavigation) {
		t.Error("StatusError does not match ErrNavigation")
	}
}

func TestScreenshotName(t *testing.T) {
	t.Parallel()

	if got := screenshotName("https://docs.example.com/guide/a?x=1"); got != "docs.example.com_guide_a_x_1.png" {
		t.Errorf("screenshotName() = %q", got)
	}
	long := screenshotName("https://docs.example.com/" + strings.Repeat("a", 300))
	if len(long) != 124 {
		t.Errorf("len(screenshotName(long)) = %d, want 124", len(long))
	}
}

func TestIsConsentText(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"Accept", " Accept  All ", "I ACCEPT", "Got it"} {
		if !isConsentText(text) {
			t.Errorf("isConsentText(%q) = false", text)
		}
	}
	for _, text := range []string{"Expand all", "Accept the terms of the license below", ""} {
		if isConsentText(text) {
			t.Errorf("isConsentText(%q) = true", text)
		}
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := map[State]string{
		StateIdle:       "idle",
		StateRunning:    "running",
		StateDraining:   "draining",
		StateTerminated: "terminated",
		State(42):       "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
