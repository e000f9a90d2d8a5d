// Package sink provides the record outputs of a crawl: one JSON file per
// record laid out by hierarchy, per-kind CSV files, an in-memory sink, and
// Multi to fan a record out to several of them.
//
// A sink returns only after the record is durable; the crawl marks a node
// done after a successful Write.
package sink
