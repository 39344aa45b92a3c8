// Package crawler crawls documentation sites with a pool of browser workers.
//
// # Architecture
//
// A Crawler owns the configuration; each Crawl call builds fresh per-run
// state around one mutex: the scope filter, the visited and queued sets,
// the results and the content fingerprints. The frontier is a buffered
// channel. Workers take entries from it, load the page in their own browser
// tab, expand collapsed navigation on script-rendered pages and extract the
// content, then commit the page and its in-scope links under the mutex.
//
// # Processing a page
//
//   - Navigate with the per-page timeout, optionally retrying with backoff
//   - Skip non-HTML responses
//   - Wait for late-rendered links, dismiss consent banners
//   - On the start page, adapt the scope to where a redirect landed
//   - Classify the page and expand it with the interaction engine
//   - Extract content and run the quality gate
//
// A page the browser cannot load is fetched once more over plain HTTP when
// the static fallback is enabled. Only when that fails too is the page
// recorded as failed.
//
// # Termination
//
// The crawl ends when the page budget is reached, when the caller stops it,
// or when a watcher sees the frontier empty with no worker busy twice in a
// row, a grace period apart. Stopping is cooperative: workers finish the
// page they hold and take no new ones.
//
// # Usage
//
//	c := crawler.New(chrome, crawler.WithMaxPages(100), crawler.WithWorkers(4))
//	report, err := c.Crawl(ctx, "https://docs.example.com/guide/")
package crawler
