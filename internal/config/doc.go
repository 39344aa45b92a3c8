// Package config provides configuration structures and utilities for docscrawl.
// It defines the crawl budgets, interaction limits, browser settings and report
// preferences, and loads per-site overrides from the .docscrawl YAML file.
package config
