package parser

import (
	"net/url"
	"strings"
)

// ResolveURL makes href absolute against base. Absolute URLs are returned
// unchanged, root-relative paths get the scheme and host of base, and any
// other relative form is joined to base with a single slash.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return href
	}

	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(href, "/")
	}

	if strings.HasPrefix(href, "//") {
		return u.Scheme + ":" + href
	}

	if strings.HasPrefix(href, "/") {
		return u.Scheme + "://" + u.Host + href
	}

	return strings.TrimRight(base, "/") + "/" + href
}
