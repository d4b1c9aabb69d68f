package testutil

import (
	"fmt"
	"strings"
)

// Listing describes one item rendered into a test page with the stock
// listing markup.
type Listing struct {
	ID        string
	Category  string
	Position  string
	Title     string
	Location  string
	Price     string
	URL       string
	Thumbnail string
	Featured  bool
	Reserved  bool
}

// ListingPage renders the given listings into a complete HTML document.
func ListingPage(listings ...Listing) []byte {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><body>\n")
	for _, l := range listings {
		b.WriteString(ListingItem(l))
	}
	b.WriteString("</body></html>\n")
	return []byte(b.String())
}

// ListingItem renders a single listing item node. Empty fields are
// omitted from the markup entirely, like the fetcher's pages do.
func ListingItem(l Listing) string {
	var b strings.Builder
	b.WriteString(`<div class="listing-item"`)
	if l.ID != "" {
		fmt.Fprintf(&b, ` data-listing-id=%q`, l.ID)
	}
	if l.Category != "" {
		fmt.Fprintf(&b, ` data-category=%q`, l.Category)
	}
	if l.Position != "" {
		fmt.Fprintf(&b, ` data-position=%q`, l.Position)
	}
	b.WriteString(">\n")
	if l.Title != "" {
		fmt.Fprintf(&b, "<span class=\"listing-title\">%s</span>\n", l.Title)
	}
	if l.Location != "" {
		fmt.Fprintf(&b, "<span class=\"listing-location\">%s</span>\n", l.Location)
	}
	if l.Price != "" {
		fmt.Fprintf(&b, "<span class=\"listing-price\">%s</span>\n", l.Price)
	}
	if l.URL != "" {
		fmt.Fprintf(&b, "<a class=\"listing-link\" href=%q>view</a>\n", l.URL)
	}
	if l.Thumbnail != "" {
		fmt.Fprintf(&b, "<img class=\"listing-thumb\" src=%q>\n", l.Thumbnail)
	}
	if l.Featured {
		b.WriteString("<span class=\"listing-badge\">Featured</span>\n")
	}
	if l.Reserved {
		b.WriteString("<span class=\"listing-badge\">Reserved</span>\n")
	}
	b.WriteString("</div>\n")
	return b.String()
}
