package parser

import (
	"testing"

	apperrors "github.com/maltedev/olx-scraper/internal/errors"
	"github.com/maltedev/olx-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchPage = `<!DOCTYPE html>
<html>
<body>
	<ul>
		<li data-aut-id="itemBox">
			<a href="/item/car-cover-for-swift-iid-1700001">
				<span data-aut-id="itemPrice">₹ 1,200</span>
				<span data-aut-id="itemTitle">  Car cover for Swift  </span>
				<span data-aut-id="item-location">Andheri East, Mumbai</span>
				<span data-aut-id="itemCreationDate">Today</span>
			</a>
		</li>
		<li data-aut-id="itemBox">
			<a href="https://www.olx.in/item/waterproof-cover-iid-1700002">
				<span data-aut-id="itemTitle">Waterproof cover</span>
			</a>
		</li>
	</ul>
</body>
</html>`

func TestParseListingsPrimarySelector(t *testing.T) {
	p := NewOlxParser("https://www.olx.in")

	listings, err := p.ParseListings(searchPage)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, models.Listing{
		Title:      "Car cover for Swift",
		Price:      "₹ 1,200",
		Location:   "Andheri East, Mumbai",
		DatePosted: "Today",
		URL:        "https://www.olx.in/item/car-cover-for-swift-iid-1700001",
	}, listings[0])

	assert.Equal(t, "Waterproof cover", listings[1].Title)
	assert.Equal(t, models.NotAvailable, listings[1].Price)
	assert.Equal(t, models.NotAvailable, listings[1].Location)
	assert.Equal(t, models.NotAvailable, listings[1].DatePosted)
	assert.Equal(t, "https://www.olx.in/item/waterproof-cover-iid-1700002", listings[1].URL)
}

func TestParseListingsSegmentationFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected []string
	}{
		{
			name: "list items with underscore item class",
			html: `<ul>
				<li class="_1DNjI _3item9x"><h2>Bike cover</h2></li>
				<li class="plain"><h2>Ignored</h2></li>
			</ul>`,
			expected: []string{"Bike cover"},
		},
		{
			name:     "content class guess",
			html:     `<div class="EIR5N"><span class="_2tW1I title">Seat cover</span></div>`,
			expected: []string{"Seat cover"},
		},
		{
			name: "generic listing class",
			html: `<div class="search-listing-card"><div class="title">Tyre cover</div></div>
				<div class="other-item"><div class="title">Not reached</div></div>`,
			expected: []string{"Tyre cover"},
		},
		{
			name:     "generic item class",
			html:     `<div class="grid-item"><div class="price">₹ 300</div><h2>Mirror cover</h2></div>`,
			expected: []string{"Mirror cover"},
		},
		{
			name: "data attribute wins over weaker selectors",
			html: `<div class="listing"><h2>Weak</h2></div>
				<div data-aut-id="itemBox"><h2>Strong</h2></div>`,
			expected: []string{"Strong"},
		},
	}

	p := NewOlxParser("https://www.olx.in")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listings, err := p.ParseListings(tt.html)
			require.NoError(t, err)

			var titles []string
			for _, l := range listings {
				titles = append(titles, l.Title)
			}
			assert.Equal(t, tt.expected, titles)
		})
	}
}

func TestParseListingsFieldSelectorFallbacks(t *testing.T) {
	html := `<div data-aut-id="itemBox">
		<span class="ad-title"></span>
		<h2>Dust cover</h2>
		<div class="price">₹ 450</div>
		<span class="location-text">Pune</span>
		<p class="post-time">2 days ago</p>
		<a href="item/dust-cover-iid-9">view</a>
	</div>`

	listings, err := NewOlxParser("https://www.olx.in").ParseListings(html)
	require.NoError(t, err)
	require.Len(t, listings, 1)

	assert.Equal(t, models.Listing{
		Title:      "Dust cover",
		Price:      "₹ 450",
		Location:   "Pune",
		DatePosted: "2 days ago",
		URL:        "https://www.olx.in/item/dust-cover-iid-9",
	}, listings[0])
}

func TestParseListingsAnchorBlock(t *testing.T) {
	html := `<a data-aut-id="itemBox" href="/item/1"><span data-aut-id="itemTitle">Cover</span></a>`

	listings, err := NewOlxParser("https://www.olx.in").ParseListings(html)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "https://www.olx.in/item/1", listings[0].URL)
}

func TestParseListingsURLFromFirstAnchorOnly(t *testing.T) {
	html := `<div data-aut-id="itemBox">
		<a name="top"><span data-aut-id="itemTitle">Seat cover</span></a>
		<a href="/item/2">details</a>
	</div>`

	listings, err := NewOlxParser("https://www.olx.in").ParseListings(html)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, models.NotAvailable, listings[0].URL)
}

func TestParseListingsCollapsesWhitespace(t *testing.T) {
	html := `<div data-aut-id="itemBox"><span data-aut-id="itemTitle">Car
		     cover   XL</span></div>`

	listings, err := NewOlxParser("https://www.olx.in").ParseListings(html)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "Car cover XL", listings[0].Title)
}

func TestParseListingsDiscardsNoise(t *testing.T) {
	html := `<div data-aut-id="itemBox"><span data-aut-id="item-location">Delhi</span><a href="/item/1">x</a></div>
		<div data-aut-id="itemBox"><span data-aut-id="itemPrice">₹ 99</span></div>
		<div data-aut-id="itemBox"></div>`

	listings, err := NewOlxParser("https://www.olx.in").ParseListings(html)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "₹ 99", listings[0].Price)
	for _, l := range listings {
		assert.True(t, l.HasIdentity())
	}
}

func TestParseListingsWithoutBlocks(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		errType apperrors.ErrorType
	}{
		{"empty page", `<html><body><p>Nothing here</p></body></html>`, apperrors.ErrTypeParse},
		{"captcha", `<html><body><div>Please solve the CAPTCHA</div></body></html>`, apperrors.ErrTypeBlocked},
		{"robot check", `<html><body>Are you a Robot?</body></html>`, apperrors.ErrTypeBlocked},
		{"access denied", `<html><body><h1>Access Denied</h1></body></html>`, apperrors.ErrTypeBlocked},
		{"empty string", ``, apperrors.ErrTypeParse},
	}

	p := NewOlxParser("https://www.olx.in")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listings, err := p.ParseListings(tt.html)
			assert.Empty(t, listings)
			require.Error(t, err)
			assert.Equal(t, tt.errType, apperrors.TypeOf(err))
		})
	}
}

func TestParseListingsIsIdempotent(t *testing.T) {
	p := NewOlxParser("https://www.olx.in")

	first, err := p.ParseListings(searchPage)
	require.NoError(t, err)
	second, err := p.ParseListings(searchPage)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtractDispatchesOnFormat(t *testing.T) {
	p := NewOlxParser("https://www.olx.in")

	fromHTML, err := p.Extract(searchPage, FormatHTML)
	require.NoError(t, err)
	assert.Len(t, fromHTML, 2)

	fromJSON, err := p.Extract(`{"data":[{"title":"Cover"}]}`, FormatJSON)
	require.NoError(t, err)
	assert.Len(t, fromJSON, 1)

	_, err = p.Extract("x", Format(42))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParse))
}
