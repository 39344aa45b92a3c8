// Package database provides SQLite-based storage for crawl history.
//
// CrawlDB keeps one row per crawl run with the full report serialized as
// JSON, plus a row for every page and every page error of that run so the
// history command can list runs and compare two of them without decoding
// whole reports.
//
// The database is a single file opened through modernc.org/sqlite, which
// needs no cgo. Writes go through one connection; WAL mode lets readers
// proceed while a run is being saved.
package database
