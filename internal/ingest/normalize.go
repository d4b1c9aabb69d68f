package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// cleanText trims a raw text field, drops non-printable characters and
// collapses runs of inner whitespace to a single space.
func cleanText(s string) string {
	var b strings.Builder
	for _, c := range s {
		if unicode.IsPrint(c) {
			b.WriteRune(c)
		}
	}
	out := strings.TrimSpace(b.String())
	return innerWhitespace.ReplaceAllString(out, " ")
}

// parseFlag coerces the site's assorted flag markers to a boolean.
func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "y":
		return true
	}
	return false
}

var priceDigits = regexp.MustCompile(`[0-9][0-9.,]*`)

// parsePrice extracts a price in cents from free-form price text like
// "€ 1.250,50" or "$1,250.50". Returns nil when no amount is present
// (e.g. "see description"), never zero, so absent prices cannot corrupt
// aggregate statistics.
func parsePrice(s string) *int64 {
	m := priceDigits.FindString(s)
	if m == "" {
		return nil
	}

	// Normalize thousand/decimal separators: the last separator within two
	// digits of the end is the decimal point, everything else is grouping.
	m = strings.Map(func(r rune) rune {
		if r == ',' {
			return '.'
		}
		return r
	}, m)

	parts := strings.Split(m, ".")
	whole := parts[0]
	frac := ""
	if len(parts) > 1 {
		last := parts[len(parts)-1]
		if len(last) <= 2 {
			frac = last
			whole = strings.Join(parts[:len(parts)-1], "")
		} else {
			whole = strings.Join(parts, "")
		}
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return nil
	}
	cents := units * 100
	if frac != "" {
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return nil
		}
		if len(frac) == 1 {
			f *= 10
		}
		cents += f
	}
	return &cents
}

// parsePosition parses a page-position field. Absent or unparseable input
// yields nil, not zero.
func parsePosition(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// Normalizer turns raw extracted field mappings into canonical records.
// It is pure: no I/O, no shared state.
type Normalizer struct{}

func NewNormalizer() *Normalizer { return &Normalizer{} }

// Normalize cleans and coerces a raw record into the canonical schema and
// derives its identity. A record missing its site id cannot be reconciled
// safely and is rejected: ok is false and the record must be dropped and
// counted, never silently lost.
func (n *Normalizer) Normalize(raw RawRecord, seenAt RunID) (Record, bool) {
	siteID := strings.TrimSpace(raw.SiteID)
	if siteID == "" {
		return Record{}, false
	}

	category := cleanText(raw.Category)
	if category == "" {
		category = "uncategorized"
	}

	return Record{
		Identity:     MakeIdentity(category, siteID),
		SiteID:       siteID,
		Category:     category,
		Title:        cleanText(raw.Title),
		Location:     cleanText(raw.Location),
		PriceCents:   parsePrice(raw.PriceText),
		Featured:     parseFlag(raw.Featured),
		Reserved:     parseFlag(raw.Reserved),
		URL:          strings.TrimSpace(raw.URL),
		ThumbnailURL: strings.TrimSpace(raw.ThumbnailURL),
		Position:     parsePosition(raw.PositionText),
		SeenAt:       seenAt,
	}, true
}
