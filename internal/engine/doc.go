// Package engine drives a resumable crawl of the catalog hierarchy.
//
// The Walker visits pending nodes of a CrawlState in breadth-first discovery
// order. For every node it waits for the rate limiter, fetches the page with
// bounded retries, writes the node's record to a Sink, and only then marks
// the node done and persists the state. A crash at any point therefore loses
// at most the node in flight.
//
// The Engine wraps a Walker with configuration validation, state loading and
// a summary log line. ExitCode maps its outcome to a process status.
package engine
