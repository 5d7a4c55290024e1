package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// ProviderName identifies the single external platform this layer
// integrates with. Legacy credential rows are keyed by it.
const ProviderName = "storefront"

// PlatformDomainSuffix is the canonical domain suffix for storefronts
// on the external platform.
const PlatformDomainSuffix = ".example-platform.com"

var shopDomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]*[a-z0-9]$`)

// NormalizeShopDomain converts a user-supplied shop identifier into its
// canonical form: lowercased, scheme and path stripped, suffixed with
// the platform domain when the bare store name was given. Lookups and
// writes must always go through this so formatting drift never causes a
// missed row.
func NormalizeShopDomain(raw string) (string, error) {
	shop := strings.ToLower(strings.TrimSpace(raw))
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	if i := strings.IndexAny(shop, "/?#"); i >= 0 {
		shop = shop[:i]
	}
	if shop == "" {
		return "", fmt.Errorf("shop identifier is empty")
	}
	if !strings.Contains(shop, ".") {
		shop += PlatformDomainSuffix
	}
	if !shopDomainPattern.MatchString(shop) {
		return "", fmt.Errorf("shop identifier %q is not a valid domain", raw)
	}
	return shop, nil
}
