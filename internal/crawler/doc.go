// Package crawler fetches and parses pages of the VUT study catalog.
//
// Spider performs one HTTP request per call, decodes the body to UTF-8 and
// hands it to Parser, which turns the HTML into a typed page document:
// the programme listing, a programme page (either a specialization hub or a
// study plan), a specialization study plan, or a subject page.
//
// Failures are reported as *model.FetchError. Server errors, throttling,
// timeouts and network errors are transient; other client errors and pages
// that cannot be parsed are permanent.
package crawler
