// Package interaction expands JavaScript-heavy pages before extraction.
//
// Documentation portals hide most of their navigation behind collapsed
// trees, accordions and tabs. The Engine clicks through them in three
// phases that share one budget:
//
//  1. a bulk pass looking for a single "expand all" control,
//  2. catalogue passes over known framework selectors, repeated while
//     they keep revealing content,
//  3. a heuristic scan of the first elements of the document.
//
// Every click is measured with a before/after browser.Snapshot and counted
// as meaningful or wasted. An element is clicked at most once, and an
// element that is already expanded is never clicked because that would
// collapse content already revealed.
package interaction
