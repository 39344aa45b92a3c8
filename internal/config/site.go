package config

// SiteConfig holds site-specific configuration for a single documentation host.
// This allows customizing crawl behavior per portal, for example a session
// cookie for a partner portal or extra deny patterns for a noisy wiki.
type SiteConfig struct {
	// Cookie is an HTTP cookie to use when crawling this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global maximum depth for this site.
	// If zero, the global MaxDepth is used.
	Depth int `yaml:"depth,omitempty"`

	// MaxPages overrides the global page budget for this site.
	MaxPages int `yaml:"maxPages,omitempty"`

	// DenyPatterns are regular expressions for URLs to skip.
	// They are added to the global and built-in patterns.
	DenyPatterns []string `yaml:"denyPatterns,omitempty"`

	// StripQueryKeys are query parameters removed before deduplication.
	StripQueryKeys []string `yaml:"stripQueryKeys,omitempty"`

	// RespectRobots drops links disallowed by the site's robots.txt.
	RespectRobots bool `yaml:"respectRobots,omitempty"`
}

// File represents the structure of the .docscrawl configuration file.
type File struct {
	// Sites maps hosts to their site-specific configurations.
	// Keys are bare host names without scheme or "www." (e.g., "docs.example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a specific host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	// Start with defaults
	result := cf.Defaults

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Depth != 0 {
		result.Depth = siteConfig.Depth
	}
	if siteConfig.MaxPages != 0 {
		result.MaxPages = siteConfig.MaxPages
	}
	if len(siteConfig.Headers) > 0 {
		merged := make(map[string]string, len(result.Headers)+len(siteConfig.Headers))
		for k, v := range result.Headers {
			merged[k] = v
		}
		for k, v := range siteConfig.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}
	if len(siteConfig.DenyPatterns) > 0 {
		result.DenyPatterns = append(append([]string{}, result.DenyPatterns...), siteConfig.DenyPatterns...)
	}
	if len(siteConfig.StripQueryKeys) > 0 {
		result.StripQueryKeys = append(append([]string{}, result.StripQueryKeys...), siteConfig.StripQueryKeys...)
	}
	if siteConfig.RespectRobots {
		result.RespectRobots = true
	}

	return result
}
