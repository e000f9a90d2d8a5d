// Package database provides SQLite-based storage for crawled catalog records.
//
// CrawlDB keeps one table per hierarchy level (programmes, specializations,
// subjects), keyed by locale and hierarchy codes. Writes are upserts, so a
// record written again after a resumed run replaces the earlier row.
//
// SQLite is accessed through modernc.org/sqlite, a CGO-free driver, with WAL
// journaling and a single writer connection.
package database
