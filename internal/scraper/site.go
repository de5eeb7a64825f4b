package scraper

import (
	"net/url"
	"strconv"
	"strings"
)

// Site builds the URLs of one marketplace domain.
type Site struct {
	BaseURL string
}

func SiteForCountry(country string) Site {
	return Site{BaseURL: "https://www.olx." + strings.ToLower(strings.TrimSpace(country))}
}

func (s Site) base() string {
	return strings.TrimRight(s.BaseURL, "/")
}

// SearchURL returns the listing page for term, e.g.
// https://www.olx.in/items/q-car-cover?page=2.
func (s Site) SearchURL(term string, page int) string {
	slug := strings.ReplaceAll(strings.TrimSpace(term), " ", "-")

	u := s.base() + "/items/q-" + url.PathEscape(slug)
	if page > 1 {
		u += "?page=" + strconv.Itoa(page)
	}
	return u
}

func (s Site) APIURL(term string) string {
	return s.base() + "/api/relevance/search?query=" + url.QueryEscape(strings.TrimSpace(term))
}
