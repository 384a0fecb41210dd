package ports

import "github.com/layer-3/verigate/core"

// SiteRegistry resolves the configuration of a site. Unknown sites get the defaults.
type SiteRegistry interface {
	Lookup(siteKey string) core.SiteConfig
}
