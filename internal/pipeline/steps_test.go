package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/docscrawl/internal/browser"
	"github.com/nao1215/docscrawl/internal/browser/fakebrowser"
	"github.com/nao1215/docscrawl/internal/config"
	"github.com/nao1215/docscrawl/internal/model"
)

var discardLogger = slog.New(slog.DiscardHandler)

func page(title string, links ...string) fakebrowser.PageSpec {
	var b strings.Builder
	b.WriteString("<html><head><title>" + title + "</title></head><body><main>")
	b.WriteString("<h1>" + title + "</h1><p>This page explains one feature of the product in enough words to count.</p>")
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, l, l)
	}
	b.WriteString("</main></body></html>")
	return fakebrowser.PageSpec{
		HTML:     b.String(),
		Snapshot: browser.Snapshot{TextLength: 500, LinkCount: len(links)},
	}
}

func fastConfig(startURL string) *config.Config {
	cfg := config.NewConfig()
	cfg.StartURL = startURL
	cfg.Workers = 2
	cfg.Timeout = 2 * time.Second
	cfg.CrawlDelay = 0
	cfg.DelayAfterClick = 0
	cfg.EnableStaticFallback = false
	cfg.ReportInterval = 0
	cfg.GracePeriod = 20 * time.Millisecond
	cfg.DequeueTimeout = 20 * time.Millisecond
	cfg.MaxEmptyPolls = 3
	return cfg
}

func TestCrawlStep(t *testing.T) {
	t.Parallel()

	t.Run("crawls the site and closes the browser", func(t *testing.T) {
		t.Parallel()

		fake := fakebrowser.New(map[string]fakebrowser.PageSpec{
			"https://docs.example.com/guide":         page("Guide", "/guide/install", "/guide/usage"),
			"https://docs.example.com/guide/install": page("Install"),
			"https://docs.example.com/guide/usage":   page("Usage"),
		})
		var gotCfg *config.Config
		cfg := fastConfig("https://docs.example.com/guide")
		step := NewCrawlStep(cfg,
			WithCrawlLogger(discardLogger),
			WithBrowserFactory(func(_ context.Context, c *config.Config) (browser.Browser, error) {
				gotCfg = c
				return fake, nil
			}),
		)

		if step.Name() != "crawl" {
			t.Errorf("Name() = %q", step.Name())
		}

		rep := model.NewCrawlReport(cfg.StartURL)
		if err := step.Do(context.Background(), rep); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if gotCfg != cfg {
			t.Error("factory did not receive the step configuration")
		}
		if rep.Host != "docs.example.com" {
			t.Errorf("Host = %q", rep.Host)
		}
		if len(rep.Pages) != 3 {
			t.Errorf("got %d pages, want 3", len(rep.Pages))
		}
		if rep.StopReason.Kind != model.StopCompleted {
			t.Errorf("StopReason = %v", rep.StopReason)
		}
		if _, err := fake.NewPage(context.Background()); !errors.Is(err, browser.ErrClosed) {
			t.Errorf("browser not closed after crawl: %v", err)
		}
	})

	t.Run("browser start failure ends the run with an error", func(t *testing.T) {
		t.Parallel()

		startErr := errors.New("chrome not found")
		step := NewCrawlStep(fastConfig("https://docs.example.com/"),
			WithCrawlLogger(discardLogger),
			WithBrowserFactory(func(context.Context, *config.Config) (browser.Browser, error) {
				return nil, startErr
			}),
		)

		rep := model.NewCrawlReport("https://docs.example.com/")
		err := step.Do(context.Background(), rep)
		if !errors.Is(err, ErrBrowserStart) || !errors.Is(err, startErr) {
			t.Fatalf("Do() error = %v", err)
		}
		if rep.StopReason.Kind != model.StopError {
			t.Errorf("StopReason = %v", rep.StopReason)
		}
		if rep.FinishedAt.IsZero() {
			t.Error("FinishedAt not set")
		}
		if rep.Host != "" {
			t.Errorf("Host = %q, want empty", rep.Host)
		}
	})

	t.Run("reports progress", func(t *testing.T) {
		t.Parallel()

		fake := fakebrowser.New(map[string]fakebrowser.PageSpec{
			"https://docs.example.com/": page("Home"),
		})
		cfg := fastConfig("https://docs.example.com/")
		cfg.ReportInterval = 10 * time.Millisecond
		calls := make(chan model.CrawlMetrics, 100)
		step := NewCrawlStep(cfg,
			WithCrawlLogger(discardLogger),
			WithBrowserFactory(func(context.Context, *config.Config) (browser.Browser, error) {
				return fake, nil
			}),
			WithProgressFunc(func(m model.CrawlMetrics) {
				select {
				case calls <- m:
				default:
				}
			}),
		)

		if err := step.Do(context.Background(), model.NewCrawlReport(cfg.StartURL)); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if len(calls) == 0 {
			t.Error("progress function never called")
		}
	})
}

func TestChromeFactory(t *testing.T) {
	t.Parallel()

	if ChromeFactory(discardLogger) == nil {
		t.Fatal("ChromeFactory() returned nil")
	}
	step := NewCrawlStep(fastConfig("https://docs.example.com/"))
	if step.newBrowser == nil {
		t.Error("default browser factory not set")
	}
}

type fakeStore struct {
	saved []*model.CrawlReport
	err   error
}

func (s *fakeStore) SaveCrawlReport(_ context.Context, rep *model.CrawlReport) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.saved = append(s.saved, rep)
	return int64(len(s.saved)), nil
}

func TestPersistStep(t *testing.T) {
	t.Parallel()

	t.Run("saves crawled report", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		step := NewPersistStep(store, discardLogger)
		rep := model.NewCrawlReport("https://docs.example.com/")
		rep.Host = "docs.example.com"

		if err := step.Do(context.Background(), rep); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if len(store.saved) != 1 || store.saved[0] != rep {
			t.Errorf("saved = %v", store.saved)
		}
	})

	t.Run("skips run that never started", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		step := NewPersistStep(store, nil)
		if err := step.Do(context.Background(), model.NewCrawlReport("https://docs.example.com/")); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if len(store.saved) != 0 {
			t.Errorf("saved %d reports, want 0", len(store.saved))
		}
	})

	t.Run("wraps store errors", func(t *testing.T) {
		t.Parallel()

		dbErr := errors.New("database is locked")
		step := NewPersistStep(&fakeStore{err: dbErr}, discardLogger)
		rep := model.NewCrawlReport("https://docs.example.com/")
		rep.Host = "docs.example.com"

		err := step.Do(context.Background(), rep)
		if !errors.Is(err, dbErr) {
			t.Errorf("Do() error = %v", err)
		}
		if step.Name() != "persist" {
			t.Errorf("Name() = %q", step.Name())
		}
	})
}

type fakeWriter struct {
	written []string
	err     error
}

func (w *fakeWriter) Write(rep *model.CrawlReport) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.written = append(w.written, rep.StartURL)
	return len(rep.StartURL), nil
}

func TestReportStep(t *testing.T) {
	t.Parallel()

	t.Run("writes reports", func(t *testing.T) {
		t.Parallel()

		w := &fakeWriter{}
		step := NewReportStep(w)
		for _, u := range []string{"https://a.example.com/", "https://b.example.com/"} {
			if err := step.Do(context.Background(), model.NewCrawlReport(u)); err != nil {
				t.Fatalf("Do() error = %v", err)
			}
		}
		if len(w.written) != 2 {
			t.Errorf("written = %v", w.written)
		}
		if step.Name() != "report" {
			t.Errorf("Name() = %q", step.Name())
		}
	})

	t.Run("wraps writer errors", func(t *testing.T) {
		t.Parallel()

		writeErr := errors.New("disk full")
		step := NewReportStep(&fakeWriter{err: writeErr})
		err := step.Do(context.Background(), model.NewCrawlReport("https://docs.example.com/"))
		if !errors.Is(err, writeErr) {
			t.Errorf("Do() error = %v", err)
		}
	})
}
