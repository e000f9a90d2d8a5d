// Package main provides the entry point for the vutcrawl CLI.
//
// vutcrawl mirrors the public study catalog of Brno University of Technology
// (programmes, specializations and subjects) into local files or a SQLite
// database. Crawls are polite (randomized delays), resumable after an
// interruption, and run per locale (cs, en).
//
// Usage:
//
//	vutcrawl crawl --locale all
//	vutcrawl status
//
// See --help for all available options.
package main

func main() {
	Execute()
}
