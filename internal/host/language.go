package host

import (
	"strings"

	"github.com/Aman-CERP/researchsearch/internal/finder"
)

// AllLanguages is the tag for content shown in every site language.
const AllLanguages = "*"

// Compile-time interface check.
var _ finder.LanguageResolver = SiteLanguage{}

// SiteLanguage keeps a language carried by the row and falls back to the
// site default.
type SiteLanguage struct {
	Default string
}

// ResolveLanguage returns the item's own tag when set, else the site default.
func (s SiteLanguage) ResolveLanguage(item *finder.IndexableItem) string {
	if tag := strings.TrimSpace(item.Language); tag != "" {
		return tag
	}
	if s.Default != "" {
		return s.Default
	}
	return AllLanguages
}
