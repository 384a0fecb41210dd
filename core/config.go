package core

const (
	ThemeLight = "light"
	ThemeDark  = "dark"

	SizeNormal  = "normal"
	SizeCompact = "compact"

	// DefaultSiteKey is used when a widget is rendered without a site key
	DefaultSiteKey = "default"
)

// RateLimit describes the advisory request budget of a site. It is reported, never enforced.
type RateLimit struct {
	Requests int   `json:"requests" yaml:"requests"`
	Window   int64 `json:"window" yaml:"window"` // milliseconds
}

// SiteConfig holds per-site display and policy parameters
type SiteConfig struct {
	SiteKey        string          `json:"siteKey" yaml:"siteKey"`
	Theme          string          `json:"theme" yaml:"theme"`
	Size           string          `json:"size" yaml:"size"`
	Challenges     []ChallengeKind `json:"challenges" yaml:"challenges"`
	Difficulty     string          `json:"difficulty" yaml:"difficulty"`
	Timeout        int64           `json:"timeout" yaml:"timeout"` // milliseconds
	AllowedDomains []string        `json:"allowedDomains" yaml:"allowedDomains"`
	RateLimit      RateLimit       `json:"rateLimit" yaml:"rateLimit"`
}

// DefaultSiteConfig returns the configuration served for sites without overrides
func DefaultSiteConfig(siteKey string) SiteConfig {
	return SiteConfig{
		SiteKey:        siteKey,
		Theme:          ThemeLight,
		Size:           SizeNormal,
		Challenges:     append([]ChallengeKind(nil), AllChallengeKinds...),
		Difficulty:     "medium",
		Timeout:        300000,
		AllowedDomains: []string{"*"},
		RateLimit: RateLimit{
			Requests: 100,
			Window:   3600000,
		},
	}
}

// AllowedKinds returns the valid challenge kinds of the site, or all kinds when none are configured
func (c SiteConfig) AllowedKinds() []ChallengeKind {
	kinds := make([]ChallengeKind, 0, len(c.Challenges))
	for _, k := range c.Challenges {
		if k.Valid() {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) == 0 {
		return append(kinds, AllChallengeKinds...)
	}
	return kinds
}
