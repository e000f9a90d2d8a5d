// Package report renders crawl reports.
//
// Writers:
//   - SimpleWriter: human-readable text for the terminal
//   - JSONWriter: structured JSON for tooling
//   - MarkdownWriter: Markdown with tables and a mermaid chart
//
// Every writer renders one or more model.CrawlReport values, one per crawled
// locale. MultiWriter fans a report out to several writers.
package report
