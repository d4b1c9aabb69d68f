package ingest

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractorConfig selects the markup signature of one listing item.
// Defaults match the fetcher's listing pages; overrides absorb site drift
// without a code change.
type ExtractorConfig struct {
	// ItemSelector locates one listing node, e.g. "div.listing-item".
	ItemSelector string
	// IDAttr is the attribute on the item node that carries the
	// site-assigned listing id, e.g. "data-listing-id".
	IDAttr string
}

// DefaultExtractorConfig returns the selectors for the stock listing markup.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		ItemSelector: "div.listing-item",
		IDAttr:       "data-listing-id",
	}
}

// Extractor parses one run's markup into raw listing records.
// It is a pure function of the markup: no I/O, no shared state.
type Extractor struct {
	cfg ExtractorConfig
}

// NewExtractor creates an Extractor. Zero-valued config fields fall back to
// the defaults.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	def := DefaultExtractorConfig()
	if cfg.ItemSelector == "" {
		cfg.ItemSelector = def.ItemSelector
	}
	if cfg.IDAttr == "" {
		cfg.IDAttr = def.IDAttr
	}
	return &Extractor{cfg: cfg}
}

// Extract parses the markup of a single page and returns raw records in
// document order, plus the number of item nodes that were skipped as
// malformed. A malformed or empty document yields no records and no error:
// extraction failures are never fatal to a run.
func (e *Extractor) Extract(markup []byte) ([]RawRecord, int) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, 0
	}

	var records []RawRecord
	skipped := 0

	doc.Find(e.cfg.ItemSelector).Each(func(i int, item *goquery.Selection) {
		raw, ok := e.extractItem(item)
		if !ok {
			skipped++
			return
		}
		if raw.PositionText == "" {
			raw.PositionText = item.AttrOr("data-position", "")
		}
		records = append(records, raw)
	})

	return records, skipped
}

// extractItem reads the fixed sub-fields of one item node. Missing
// sub-fields yield empty values; the item is only rejected as malformed
// when it carries neither an id nor a title, i.e. nothing usable at all.
func (e *Extractor) extractItem(item *goquery.Selection) (RawRecord, bool) {
	raw := RawRecord{
		SiteID:    item.AttrOr(e.cfg.IDAttr, ""),
		Category:  item.AttrOr("data-category", ""),
		Title:     item.Find(".listing-title").First().Text(),
		Location:  item.Find(".listing-location").First().Text(),
		PriceText: item.Find(".listing-price").First().Text(),
	}

	if link := item.Find("a.listing-link").First(); link.Length() > 0 {
		raw.URL = link.AttrOr("href", "")
	}
	if thumb := item.Find("img.listing-thumb").First(); thumb.Length() > 0 {
		raw.ThumbnailURL = thumb.AttrOr("src", "")
	}

	item.Find(".listing-badge").Each(func(_ int, badge *goquery.Selection) {
		switch strings.ToLower(strings.TrimSpace(badge.Text())) {
		case "featured":
			raw.Featured = "yes"
		case "reserved":
			raw.Reserved = "yes"
		}
	})

	if raw.SiteID == "" && strings.TrimSpace(raw.Title) == "" {
		return RawRecord{}, false
	}
	return raw, true
}
