package common

import (
	"fmt"
	"net/url"
	"strings"
)

// marketplaceBrand is removed from hostnames so every storefront of the
// marketplace maps to its locale suffix (www.amazon.com.tr -> .com.tr)
const marketplaceBrand = "amazon"

// DomainKey derives the cookie-jar bucket for a product URL
func DomainKey(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("url has no host: %s", rawURL)
	}

	host = strings.TrimPrefix(host, "www.")
	host = strings.Replace(host, marketplaceBrand, "", 1)

	return host, nil
}
