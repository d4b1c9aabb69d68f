package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"listwatch/internal/ingest"
)

func testTable() ingest.MasterTable {
	price := int64(10000)
	return ingest.MasterTable{
		"bikes/a-1": &ingest.Entry{
			Record: ingest.Record{
				Identity:   "bikes/a-1",
				SiteID:     "a-1",
				Category:   "bikes",
				Title:      "City bike",
				PriceCents: &price,
				Featured:   true,
			},
			FirstSeen: "20240101T120000Z",
			LastSeen:  "20240102T120000Z",
			Status:    ingest.StatusActive,
		},
		"bikes/a-2": &ingest.Entry{
			Record: ingest.Record{
				Identity: "bikes/a-2",
				SiteID:   "a-2",
				Category: "bikes",
				Title:    "Racing bike",
			},
			FirstSeen: "20240101T120000Z",
			LastSeen:  "20240101T120000Z",
			Status:    ingest.StatusRemoved,
		},
		"cars/c-7": &ingest.Entry{
			Record: ingest.Record{
				Identity: "cars/c-7",
				SiteID:   "c-7",
				Category: "cars",
				Title:    "Estate",
			},
			FirstSeen: "20240101T120000Z",
			LastSeen:  "20240102T120000Z",
			Status:    ingest.StatusActive,
		},
	}
}

func TestRows_FiltersRemoved(t *testing.T) {
	rows := Rows(testTable(), Options{})
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2 (removed filtered)", len(rows))
	}
	for _, row := range rows {
		if row[0] == "bikes/a-2" {
			t.Error("removed entry exported without IncludeRemoved")
		}
	}

	rows = Rows(testTable(), Options{IncludeRemoved: true})
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3 with IncludeRemoved", len(rows))
	}
}

func TestRows_SortOrder(t *testing.T) {
	rows := Rows(testTable(), Options{IncludeRemoved: true})

	want := []string{"bikes/a-1", "bikes/a-2", "cars/c-7"}
	for i, id := range want {
		if rows[i][0] != id {
			t.Errorf("rows[%d] = %s, want %s", i, rows[i][0], id)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testTable(), Options{}); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}

	if len(records) != 3 { // header + 2 active rows
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	if records[0][0] != "identity" || records[0][len(records[0])-1] != "status" {
		t.Errorf("header = %v", records[0])
	}

	row := records[1]
	if row[0] != "bikes/a-1" {
		t.Errorf("first row identity = %q", row[0])
	}
	if row[5] != "10000" {
		t.Errorf("price_cents = %q, want %q", row[5], "10000")
	}
	if row[6] != "true" {
		t.Errorf("featured = %q, want %q", row[6], "true")
	}
	if row[10] != "" {
		t.Errorf("position = %q, want empty for nil", row[10])
	}
}

func TestWriteCSV_IsDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	if err := WriteCSV(&a, testTable(), Options{IncludeRemoved: true}); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if err := WriteCSV(&b, testTable(), Options{IncludeRemoved: true}); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if a.String() != b.String() {
		t.Error("two renders of the same table differ")
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, testTable(), Options{}); err != nil {
		t.Fatalf("WriteHTML() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"<!DOCTYPE html>",
		`data-kind="number"`,
		"bikes/a-1",
		"City bike",
		"cars/c-7",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}

	if strings.Contains(out, "bikes/a-2") {
		t.Error("removed entry rendered without IncludeRemoved")
	}

	// Self-contained: no external scripts or stylesheets.
	for _, forbidden := range []string{"src=\"http", "href=\"http", "<link"} {
		if strings.Contains(out, forbidden) {
			t.Errorf("output references external resource: %q", forbidden)
		}
	}
}

func TestWriteHTML_EscapesMarkup(t *testing.T) {
	m := ingest.MasterTable{
		"bikes/a-1": &ingest.Entry{
			Record: ingest.Record{
				Identity: "bikes/a-1",
				SiteID:   "a-1",
				Category: "bikes",
				Title:    `<script>alert("x")</script>`,
			},
			FirstSeen: "20240101T120000Z",
			LastSeen:  "20240101T120000Z",
			Status:    ingest.StatusActive,
		},
	}

	var buf bytes.Buffer
	if err := WriteHTML(&buf, m, Options{}); err != nil {
		t.Fatalf("WriteHTML() error = %v", err)
	}
	if strings.Contains(buf.String(), `<script>alert`) {
		t.Error("listing title not escaped")
	}
}
