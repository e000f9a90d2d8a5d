// Package config holds the crawler configuration: defaults, validation, and
// the optional .vutcrawl YAML file that overrides them.
package config
