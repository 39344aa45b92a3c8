// Package browser defines the rendering capability used by the crawler and
// the interaction engine, and implements it on headless Chrome via chromedp.
//
// The capability is deliberately small: open a page, navigate, query
// elements by CSS selector, measure the page, click, evaluate scripts and
// read the rendered HTML. Package fakebrowser provides an in-memory
// implementation for tests.
//
// Element handles returned by QueryAll stay valid across DOM mutations that
// do not remove the element. Chrome elements are tagged with a private data
// attribute when they are first returned.
package browser
