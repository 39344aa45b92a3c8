// Package pipeline runs the steps that turn a start URL into a stored and
// printed crawl report.
//
// A crawl is one CrawlStep followed by final steps that persist the report
// and write it out. Final steps run even when the crawl was interrupted, so
// a run stopped with Ctrl-C is still saved and reported. BatchProcessor runs
// one pipeline per site with bounded concurrency using errgroup.
package pipeline
