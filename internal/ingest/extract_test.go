package ingest

import "testing"

const samplePage = `<!DOCTYPE html>
<html><body>
<div class="listing-item" data-listing-id="a-123" data-category="bikes" data-position="1">
  <span class="listing-title">City bike,  barely used</span>
  <span class="listing-location">Utrecht</span>
  <span class="listing-price">&euro; 1.250,50</span>
  <a class="listing-link" href="/l/bikes/a-123">view</a>
  <img class="listing-thumb" src="https://img.example/a-123.jpg?v=9">
  <span class="listing-badge">Featured</span>
</div>
<div class="listing-item" data-listing-id="a-124" data-category="bikes">
  <span class="listing-title">Racing bike</span>
  <span class="listing-badge">Reserved</span>
</div>
<div class="listing-item">
  <span class="listing-location">orphaned node, no id and no title</span>
</div>
</body></html>`

func TestExtractor_Extract(t *testing.T) {
	e := NewExtractor(ExtractorConfig{})

	records, skipped := e.Extract([]byte(samplePage))

	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}

	first := records[0]
	if first.SiteID != "a-123" {
		t.Errorf("SiteID = %q, want %q", first.SiteID, "a-123")
	}
	if first.Category != "bikes" {
		t.Errorf("Category = %q, want %q", first.Category, "bikes")
	}
	if first.Title != "City bike,  barely used" {
		t.Errorf("Title = %q, want raw uncleaned text", first.Title)
	}
	if first.Location != "Utrecht" {
		t.Errorf("Location = %q, want %q", first.Location, "Utrecht")
	}
	if first.PriceText != "€ 1.250,50" {
		t.Errorf("PriceText = %q, want %q", first.PriceText, "€ 1.250,50")
	}
	if first.URL != "/l/bikes/a-123" {
		t.Errorf("URL = %q, want %q", first.URL, "/l/bikes/a-123")
	}
	if first.ThumbnailURL != "https://img.example/a-123.jpg?v=9" {
		t.Errorf("ThumbnailURL = %q", first.ThumbnailURL)
	}
	if first.PositionText != "1" {
		t.Errorf("PositionText = %q, want %q", first.PositionText, "1")
	}
	if first.Featured != "yes" {
		t.Errorf("Featured = %q, want %q", first.Featured, "yes")
	}
	if first.Reserved != "" {
		t.Errorf("Reserved = %q, want empty", first.Reserved)
	}

	second := records[1]
	if second.SiteID != "a-124" {
		t.Errorf("SiteID = %q, want %q", second.SiteID, "a-124")
	}
	if second.Reserved != "yes" {
		t.Errorf("Reserved = %q, want %q", second.Reserved, "yes")
	}
	if second.PriceText != "" {
		t.Errorf("PriceText = %q, want empty", second.PriceText)
	}
}

func TestExtractor_Extract_MissingIDKeepsTitledItem(t *testing.T) {
	e := NewExtractor(ExtractorConfig{})

	page := `<div class="listing-item"><span class="listing-title">Has a title</span></div>`
	records, skipped := e.Extract([]byte(page))

	// An item with a title but no id is extracted; the normalizer rejects
	// it later so it is counted instead of silently dropped here.
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].SiteID != "" {
		t.Errorf("SiteID = %q, want empty", records[0].SiteID)
	}
}

func TestExtractor_Extract_CustomSelectors(t *testing.T) {
	e := NewExtractor(ExtractorConfig{
		ItemSelector: "li.ad",
		IDAttr:       "data-ad-id",
	})

	page := `<ul>
		<li class="ad" data-ad-id="x-9"><span class="listing-title">Lamp</span></li>
		<div class="listing-item" data-listing-id="ignored"><span class="listing-title">Old markup</span></div>
	</ul>`
	records, _ := e.Extract([]byte(page))

	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].SiteID != "x-9" {
		t.Errorf("SiteID = %q, want %q", records[0].SiteID, "x-9")
	}
}

func TestExtractor_Extract_EmptyDocument(t *testing.T) {
	e := NewExtractor(ExtractorConfig{})

	for _, tc := range []struct {
		name   string
		markup string
	}{
		{"empty", ""},
		{"no items", "<html><body><p>nothing here</p></body></html>"},
		{"truncated", "<html><body><div class=\"listing-it"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			records, skipped := e.Extract([]byte(tc.markup))
			if len(records) != 0 {
				t.Errorf("len(records) = %d, want 0", len(records))
			}
			if skipped != 0 {
				t.Errorf("skipped = %d, want 0", skipped)
			}
		})
	}
}
