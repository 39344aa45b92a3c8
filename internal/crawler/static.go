package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/nao1215/docscrawl/internal/extract"
)

// staticPage is the result of a plain HTTP fetch.
type staticPage struct {
	result      *extract.Result
	contentType string
	finalURL    string
	bytes       int64
}

// fetchStatic fetches pageURL without a browser and extracts it.
// Status codes of 400 and above are returned as *StatusError.
func (c *Crawler) fetchStatic(ctx context.Context, pageURL string) (*staticPage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.staticTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &StatusError{Code: resp.StatusCode, Static: true}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	sp := &staticPage{
		contentType: resp.Header.Get("Content-Type"),
		finalURL:    resp.Request.URL.String(),
		bytes:       int64(len(body)),
	}
	if !isHTML(sp.contentType) {
		sp.result = &extract.Result{}
		return sp, nil
	}

	res, err := c.extractor.Extract(string(body), sp.finalURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	sp.result = res
	return sp, nil
}
