package fakebrowser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/docscrawl/internal/browser"
)

func TestPage_Navigate(t *testing.T) {
	t.Parallel()

	b := New(map[string]PageSpec{
		"https://docs.example.com/a":    {HTML: "<html></html>", FinalURL: "https://docs.example.com/b"},
		"https://docs.example.com/slow": {Delay: time.Second},
	})

	t.Run("defaults status and content type", func(t *testing.T) {
		t.Parallel()
		p, err := b.NewPage(context.Background())
		if err != nil {
			t.Fatalf("NewPage() error = %v", err)
		}
		defer p.Close()

		resp, err := p.Navigate(context.Background(), "https://docs.example.com/a", time.Second)
		if err != nil {
			t.Fatalf("Navigate() error = %v", err)
		}
		if resp.Status != 200 || resp.ContentType != "text/html" {
			t.Errorf("Navigate() = %+v, want 200 text/html", resp)
		}
		if resp.URL != "https://docs.example.com/b" {
			t.Errorf("Navigate().URL = %q, want redirect target", resp.URL)
		}
	})

	t.Run("unknown URL is 404", func(t *testing.T) {
		t.Parallel()
		p, _ := b.NewPage(context.Background())
		defer p.Close()

		resp, err := p.Navigate(context.Background(), "https://docs.example.com/missing", time.Second)
		if err != nil {
			t.Fatalf("Navigate() error = %v", err)
		}
		if resp.Status != 404 {
			t.Errorf("Navigate().Status = %d, want 404", resp.Status)
		}
	})

	t.Run("delay past timeout times out", func(t *testing.T) {
		t.Parallel()
		p, _ := b.NewPage(context.Background())
		defer p.Close()

		_, err := p.Navigate(context.Background(), "https://docs.example.com/slow", 10*time.Millisecond)
		if !errors.Is(err, browser.ErrNavigationTimeout) {
			t.Errorf("Navigate() error = %v, want ErrNavigationTimeout", err)
		}
	})
}

func TestElement_ClickMutatesOnlyItsTab(t *testing.T) {
	t.Parallel()

	const url = "https://docs.example.com/"
	b := New(map[string]PageSpec{
		url: {
			Snapshot: browser.Snapshot{TextLength: 100},
			Elements: []ElementSpec{{
				Name:      "toggle",
				Selectors: []string{"button"},
				OnClick: func(s *State) {
					s.Snapshot.TextLength += 500
				},
			}},
		},
	})
	ctx := context.Background()

	p1, _ := b.NewPage(ctx)
	p2, _ := b.NewPage(ctx)
	defer p1.Close()
	defer p2.Close()
	for _, p := range []browser.Page{p1, p2} {
		if _, err := p.Navigate(ctx, url, time.Second); err != nil {
			t.Fatalf("Navigate() error = %v", err)
		}
	}

	els, err := p1.QueryAll(ctx, "button", 0)
	if err != nil || len(els) != 1 {
		t.Fatalf("QueryAll() = %d elements, %v; want 1", len(els), err)
	}
	if err := els[0].Click(ctx, time.Second); err != nil {
		t.Fatalf("Click() error = %v", err)
	}

	s1, _ := p1.Snapshot(ctx)
	s2, _ := p2.Snapshot(ctx)
	if s1.TextLength != 600 {
		t.Errorf("clicked tab TextLength = %d, want 600", s1.TextLength)
	}
	if s2.TextLength != 100 {
		t.Errorf("other tab TextLength = %d, want 100", s2.TextLength)
	}
	if got := b.Clicks(url, "toggle"); got != 1 {
		t.Errorf("Clicks() = %d, want 1", got)
	}
}

func TestBrowser_OpenPagesAndClose(t *testing.T) {
	t.Parallel()

	b := New(nil)
	ctx := context.Background()
	p, _ := b.NewPage(ctx)
	if got := b.OpenPages(); got != 1 {
		t.Errorf("OpenPages() = %d, want 1", got)
	}
	_ = p.Close()
	_ = p.Close()
	if got := b.OpenPages(); got != 0 {
		t.Errorf("OpenPages() after close = %d, want 0", got)
	}

	_ = b.Close()
	if _, err := b.NewPage(ctx); !errors.Is(err, browser.ErrClosed) {
		t.Errorf("NewPage() after Close error = %v, want ErrClosed", err)
	}
}
