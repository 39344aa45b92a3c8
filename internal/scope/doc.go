// Package scope decides which URLs belong to a documentation crawl.
//
// Every URL is first reduced to a CanonicalURL so that trivially different
// spellings of the same page ("www." prefix, default ports, escaped
// unreserved characters, dot segments, trailing slashes, fragments) collapse
// to one crawl target. A Filter then accepts a canonical URL when it lives
// on the root host, below the root's path subtree, and matches none of the
// deny patterns.
//
// The subtree boundary is path-segment precise: a scope of /docs contains
// /docs and /docs/guide but not /docs-archive.
//
// A Filter is not safe for concurrent use. The crawler serializes access to
// it together with the rest of its frontier state.
package scope
