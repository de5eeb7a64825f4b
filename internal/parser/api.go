package parser

import (
	"encoding/json"
	"strconv"
	"strings"

	apperrors "github.com/maltedev/olx-scraper/internal/errors"
	"github.com/maltedev/olx-scraper/internal/models"
)

// ParseAPIResponse maps the search API body onto listings. The endpoint is
// undocumented: anything other than an object with a "data" list yields no
// listings.
func (p *OlxParser) ParseAPIResponse(body []byte) ([]models.Listing, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.Parse("API response is not valid JSON", err)
	}

	items, ok := payload["data"].([]any)
	if !ok {
		return nil, nil
	}

	listings := make([]models.Listing, 0, len(items))
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		listing := models.NewListing()
		listing.Title = scalar(lookup(item, "title"))
		listing.Price = scalar(lookup(item, "price", "value"))
		listing.Location = scalar(lookup(item, "location", "label"))
		listing.DatePosted = scalar(lookup(item, "created_at"))
		if href := scalar(lookup(item, "url")); href != models.NotAvailable {
			listing.URL = models.OrNotAvailable(ResolveURL(p.baseURL, href))
		}

		listings = append(listings, listing)
	}

	return models.Retain(listings), nil
}

func lookup(item map[string]any, path ...string) any {
	var current any = item
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}

// scalar renders a JSON value as listing text. Objects are accepted when they
// carry a display form, as the price object does.
func scalar(v any) string {
	switch val := v.(type) {
	case string:
		return models.OrNotAvailable(strings.TrimSpace(val))
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case map[string]any:
		if display, ok := val["display"]; ok {
			return scalar(display)
		}
	}
	return models.NotAvailable
}
