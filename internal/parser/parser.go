package parser

import (
	"github.com/maltedev/olx-scraper/internal/models"
)

// Format tells the extractor how to read a page body.
type Format int

const (
	FormatHTML Format = iota
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatHTML:
		return "html"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

type Parser interface {
	Extract(content string, format Format) ([]models.Listing, error)
	ParseListings(html string) ([]models.Listing, error)
	ParseAPIResponse(body []byte) ([]models.Listing, error)
}
