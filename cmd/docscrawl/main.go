// Package main provides the entry point for the docscrawl CLI.
//
// docscrawl crawls documentation portals that render their navigation
// client-side. It expands collapsed menus in a headless browser, extracts the
// readable text of every page inside the documentation subtree and keeps a
// history of past crawls.
//
// Usage:
//
//	docscrawl crawl <start-url>
//	docscrawl crawl --parallel 2 <url> <url>
//	docscrawl history <host>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
