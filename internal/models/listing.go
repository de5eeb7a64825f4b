package models

// NotAvailable marks a field that could not be resolved from the source.
const NotAvailable = "N/A"

// CSVHeader is the fixed column order of the tabular export.
var CSVHeader = []string{"title", "price", "location", "date_posted", "url"}

type Listing struct {
	Title      string `json:"title"`
	Price      string `json:"price"`
	Location   string `json:"location"`
	DatePosted string `json:"date_posted"`
	URL        string `json:"url"`
}

func NewListing() Listing {
	return Listing{
		Title:      NotAvailable,
		Price:      NotAvailable,
		Location:   NotAvailable,
		DatePosted: NotAvailable,
		URL:        NotAvailable,
	}
}

// HasIdentity reports whether the listing carries a title or a price.
// Listings without either are noise and are never exported.
func (l Listing) HasIdentity() bool {
	return l.Title != NotAvailable || l.Price != NotAvailable
}

func (l Listing) CSVRecord() []string {
	return []string{l.Title, l.Price, l.Location, l.DatePosted, l.URL}
}

// Retain returns the listings that have an identity, preserving order.
func Retain(listings []Listing) []Listing {
	kept := make([]Listing, 0, len(listings))
	for _, l := range listings {
		if l.HasIdentity() {
			kept = append(kept, l)
		}
	}
	return kept
}

// OrNotAvailable returns v, or the sentinel when v is empty.
func OrNotAvailable(v string) string {
	if v == "" {
		return NotAvailable
	}
	return v
}
