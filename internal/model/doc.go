// Package model defines the core data structures shared by the crawl engine,
// the page fetcher and the data sinks.
//
// This package contains the following main types:
//   - Locale: the site language variant a crawl runs in
//   - NodeID and Node: identity and discovery data of a hierarchy node
//   - ProgrammeNode, SpecializationNode, SubjectRecord: records written to sinks
//   - PageDocument: typed result of fetching and parsing one page
//   - FetchError: classified fetch failure (transient or permanent)
//   - CrawlReport: summary of a single traversal
//
// Models live in their own package so that the engine, the crawler and the
// sinks can share them without import cycles. All types serialize to JSON.
package model
