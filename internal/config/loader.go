package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".docscrawl"

// xdgConfigFile is the file name looked up inside XDGConfigDir.
const xdgConfigFile = "config.yaml"

// XDGConfigFile returns the per-user configuration file path.
func XDGConfigFile() string {
	return filepath.Join(XDGConfigDir(), xdgConfigFile)
}

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads site configurations from a YAML file.
//
// Unknown keys are rejected so that a misspelt option does not silently
// fall back to its default. Site keys are normalized the way crawl hosts
// are ("https://www.Docs.example.com/" becomes "docs.example.com"), and
// every deny pattern must compile. A missing file yields ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	defer f.Close()

	var raw File
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cf := &File{
		Defaults: raw.Defaults,
		Sites:    make(map[string]SiteConfig, len(raw.Sites)),
	}
	if err := checkPatterns("defaults", raw.Defaults.DenyPatterns); err != nil {
		return nil, err
	}
	for key, site := range raw.Sites {
		host := SiteKey(key)
		if host == "" {
			return nil, fmt.Errorf("%w: empty site key %q", ErrInvalidSiteConfig, key)
		}
		if _, dup := cf.Sites[host]; dup {
			return nil, fmt.Errorf("%w: %q and another key both name %s", ErrInvalidSiteConfig, key, host)
		}
		if err := checkPatterns(host, site.DenyPatterns); err != nil {
			return nil, err
		}
		cf.Sites[host] = site
	}
	return cf, nil
}

// SiteKey reduces a URL or host name to the form used as a key under
// "sites": lower case, without scheme, path or "www." prefix.
func SiteKey(key string) string {
	host := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	return strings.TrimPrefix(host, "www.")
}

func checkPatterns(site string, patterns []string) error {
	for _, p := range patterns {
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			return fmt.Errorf("%w: %s: deny pattern %q: %w", ErrInvalidSiteConfig, site, p, err)
		}
	}
	return nil
}

// FindConfigFile returns the configuration file to use, or "" if none exists.
//
// An explicit configPath is used as is. Otherwise the candidates are, in
// order, .docscrawl in the current directory, config.yaml in XDGConfigDir
// and .docscrawl in the home directory.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if fileExists(configPath) {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, XDGConfigFile())
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, c := range candidates {
		if fileExists(c) {
			return c
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
