// Package config loads the dashboard configuration from warren.yml with
// environment variable fallbacks. Every field has a usable default, so the
// dashboard runs against a local Redis with no configuration at all.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither file, environment nor flags say otherwise.
const (
	DefaultInstance = "default"
	DefaultRedisURL = "redis://localhost:6379"
	DefaultListen   = ":8080"
)

// Config represents the top-level warren.yml configuration.
type Config struct {
	Instance string            `yaml:"instance,omitempty"`  // Fleet instance name (key namespace)
	RedisURL string            `yaml:"redis_url,omitempty"` // Backing store connection URL
	Listen   string            `yaml:"listen,omitempty"`    // HTTP listen address
	Xrefs    map[string]string `yaml:"xrefs,omitempty"`     // Label -> URL template with a {root_id} placeholder
}

// Xref is one cross-reference link rendered on task and analysis pages.
type Xref struct {
	Label string
	URL   string
}

// XrefLinks expands the configured templates for one root task ID,
// sorted by label for stable display.
func (c *Config) XrefLinks(rootID string) []Xref {
	links := make([]Xref, 0, len(c.Xrefs))
	for label, template := range c.Xrefs {
		links = append(links, Xref{
			Label: label,
			URL:   strings.ReplaceAll(template, "{root_id}", rootID),
		})
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].Label < links[j].Label
	})
	return links
}

// Load reads warren.yml from the given path and fills missing fields from
// the WARREN_INSTANCE, WARREN_REDIS_URL and WARREN_LISTEN environment
// variables, then from defaults. An empty path skips the file entirely; an
// explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyFallbacks()
	return cfg, nil
}

func (c *Config) applyFallbacks() {
	if c.Instance == "" {
		c.Instance = envOr("WARREN_INSTANCE", DefaultInstance)
	}
	if c.RedisURL == "" {
		c.RedisURL = envOr("WARREN_REDIS_URL", DefaultRedisURL)
	}
	if c.Listen == "" {
		c.Listen = envOr("WARREN_LISTEN", DefaultListen)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
