package report

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/docscrawl/internal/model"
)

// Summary condenses a crawl report into the figures shown by every format.
type Summary struct {
	StartURL     string         `json:"start_url"`
	Host         string         `json:"host"`
	Scope        string         `json:"scope"`
	ScopeWidened bool           `json:"scope_widened"`
	StartedAt    time.Time      `json:"started_at"`
	Duration     time.Duration  `json:"duration"`
	StopKind     model.StopKind `json:"stop_kind"`
	StopMessage  string         `json:"stop_message"`

	// Pages is the number of attempted pages, Useful those not skipped.
	Pages  int `json:"pages"`
	Useful int `json:"useful"`

	// StatusCounts holds the number of pages per status, every status included.
	StatusCounts map[model.PageStatus]int `json:"status_counts"`

	// Expanded is the number of pages the interaction engine worked on.
	Expanded int `json:"expanded"`

	// StaticFallbacks is the number of pages recovered by a plain HTTP fetch.
	StaticFallbacks int `json:"static_fallbacks"`

	TotalWords int   `json:"total_words"`
	TotalBytes int64 `json:"total_bytes"`

	// SkipReasons counts skipped pages per reason, most frequent first.
	SkipReasons []ReasonCount `json:"skip_reasons,omitempty"`
}

// ReasonCount is the number of pages skipped for one reason.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// NewSummary builds the summary of report.
func NewSummary(report *model.CrawlReport) Summary {
	s := Summary{
		StartURL:     report.StartURL,
		Host:         report.Host,
		Scope:        report.Scope,
		ScopeWidened: report.ScopeWidened,
		StartedAt:    report.StartedAt,
		Duration:     report.Duration(),
		StopKind:     report.StopReason.Kind,
		StopMessage:  report.StopReason.String(),
		Pages:        len(report.Pages),
		Useful:       report.UsefulPages(),
		StatusCounts: make(map[model.PageStatus]int, 4),
	}
	for _, st := range model.AllPageStatuses() {
		s.StatusCounts[st] = 0
	}

	reasons := make(map[string]int)
	for _, p := range report.Pages {
		s.StatusCounts[p.Status]++
		s.TotalWords += p.WordCount
		s.TotalBytes += p.Bytes
		if p.StaticFallback {
			s.StaticFallbacks++
		}
		if p.ClicksAttempted > 0 {
			s.Expanded++
		}
		if p.Skipped {
			reasons[skipCategory(p.SkipReason)]++
		}
	}

	for reason, n := range reasons {
		s.SkipReasons = append(s.SkipReasons, ReasonCount{Reason: reason, Count: n})
	}
	slices.SortFunc(s.SkipReasons, func(a, b ReasonCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Reason, b.Reason)
	})
	return s
}

// Failed returns the number of failed and timed out pages.
func (s Summary) Failed() int {
	return s.StatusCounts[model.StatusFailed] + s.StatusCounts[model.StatusTimeout]
}

// skipCategory folds reasons naming a URL or a content type into one entry.
func skipCategory(reason string) string {
	switch {
	case reason == "":
		return "unknown"
	case strings.HasPrefix(reason, "duplicate of "):
		return "duplicate content"
	case strings.HasPrefix(reason, "non-HTML content type"):
		return "non-HTML content"
	default:
		return reason
	}
}

// statusLabel returns the display name of a status, "Ok" becoming "OK".
func statusLabel(st model.PageStatus) string {
	if st == model.StatusOK {
		return "OK"
	}
	return cases.Title(language.English).String(st.String())
}
