// Package extract turns rendered documentation HTML into page content.
//
// It is shared by the browser path, which extracts from the DOM serialized
// after expansion, and by the static fallback, which extracts from a plain
// HTTP response. Documents are parsed with golang.org/x/net/html and
// queried with goquery.
package extract
