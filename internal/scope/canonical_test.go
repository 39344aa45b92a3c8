package scope

import (
	"errors"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		raw        string
		stripQuery bool
		want       string
	}{
		{name: "lower-cases host and scheme", raw: "HTTPS://Docs.Example.COM/Guide", want: "https://docs.example.com/Guide"},
		{name: "strips www prefix", raw: "https://www.example.com/docs", want: "https://example.com/docs"},
		{name: "strips default https port", raw: "https://example.com:443/docs", want: "https://example.com/docs"},
		{name: "strips default http port", raw: "http://example.com:80/docs", want: "http://example.com/docs"},
		{name: "keeps non-default port", raw: "https://example.com:8080/docs", want: "https://example.com:8080/docs"},
		{name: "empty path becomes root", raw: "https://example.com", want: "https://example.com/"},
		{name: "root keeps its slash", raw: "https://example.com/", want: "https://example.com/"},
		{name: "strips trailing slash", raw: "https://example.com/docs/", want: "https://example.com/docs"},
		{name: "resolves dot segments", raw: "https://example.com/a/b/../c", want: "https://example.com/a/c"},
		{name: "resolves single dots", raw: "https://example.com/a/./b", want: "https://example.com/a/b"},
		{name: "collapses double slashes", raw: "https://example.com/a//b", want: "https://example.com/a/b"},
		{name: "decodes unreserved escapes", raw: "https://example.com/p%61th", want: "https://example.com/path"},
		{name: "decodes tilde escape", raw: "https://example.com/%7Euser", want: "https://example.com/~user"},
		{name: "keeps encoded slash", raw: "https://example.com/a%2Fb", want: "https://example.com/a%2Fb"},
		{name: "upper-cases reserved escapes", raw: "https://example.com/a%2fb", want: "https://example.com/a%2Fb"},
		{name: "drops fragment", raw: "https://example.com/docs#install", want: "https://example.com/docs"},
		{name: "keeps query", raw: "https://example.com/docs?v=2", want: "https://example.com/docs?v=2"},
		{name: "strips query on request", raw: "https://example.com/docs?v=2", stripQuery: true, want: "https://example.com/docs"},
		{name: "trims whitespace", raw: "  https://example.com/docs \n", want: "https://example.com/docs"},
		{name: "drops user info", raw: "https://user:pw@example.com/docs", want: "https://example.com/docs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Canonicalize(tt.raw, tt.stripQuery)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got.String())
			}
		})
	}
}

func TestCanonicalizeRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "empty", raw: "", want: ErrInvalidURL},
		{name: "whitespace", raw: "   ", want: ErrInvalidURL},
		{name: "javascript", raw: "javascript:void(0)", want: ErrUnsupportedScheme},
		{name: "javascript upper case", raw: "JavaScript:void(0)", want: ErrUnsupportedScheme},
		{name: "mailto", raw: "mailto:docs@example.com", want: ErrUnsupportedScheme},
		{name: "tel", raw: "tel:+15555555", want: ErrUnsupportedScheme},
		{name: "data", raw: "data:text/html,hi", want: ErrUnsupportedScheme},
		{name: "fragment", raw: "#section", want: ErrUnsupportedScheme},
		{name: "ftp", raw: "ftp://example.com/file", want: ErrUnsupportedScheme},
		{name: "relative", raw: "/docs/guide", want: ErrUnsupportedScheme},
		{name: "missing host", raw: "https:///docs", want: ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Canonicalize(tt.raw, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"HTTPS://WWW.Example.com:443/a/b/../c/?q=1#frag",
		"https://example.com/p%61th/%2fencoded/",
		"http://example.com:8080/",
		"https://example.com/docs/index.html?lang=en&v=2",
		"https://example.com/%E6%97%A5%E6%9C%AC/",
		"https://example.com/a b",
		"https://example.com/a%252Fb",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			t.Parallel()

			first, err := Canonicalize(in, false)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			second, err := Canonicalize(first.String(), false)
			if err != nil {
				t.Fatalf("unexpected error on second pass: %v", err)
			}
			if first != second {
				t.Errorf("expected idempotent result, got %q then %q", first.String(), second.String())
			}
		})
	}
}

func TestCanonicalURLEquality(t *testing.T) {
	t.Parallel()

	a := MustCanonicalize("https://www.example.com/docs/")
	b := MustCanonicalize("https://example.com:443/docs#top")
	if a != b {
		t.Errorf("expected %q and %q to be equal", a.String(), b.String())
	}

	seen := map[CanonicalURL]bool{a: true}
	if !seen[b] {
		t.Error("expected canonical URLs to work as map keys")
	}
}

func TestCanonicalURLZero(t *testing.T) {
	t.Parallel()

	var c CanonicalURL
	if !c.IsZero() {
		t.Error("expected zero value to report IsZero")
	}
	if c.String() != "" {
		t.Errorf("expected empty string, got %q", c.String())
	}
}
