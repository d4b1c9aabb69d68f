package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"

	"listwatch/internal/ingest"
)

//go:embed template.html
var htmlTemplate string

var browsableTmpl = template.Must(template.New("browsable").Parse(htmlTemplate))

type htmlData struct {
	Title   string
	Columns []Column
	Rows    [][]string
}

// WriteHTML writes the browsable table: the same rows as the CSV export,
// embedded in a self-contained document with client-side column sorting.
// Column kinds tell the sorter whether to compare numerically or as text.
func WriteHTML(w io.Writer, m ingest.MasterTable, opts Options) error {
	data := htmlData{
		Title:   "listwatch report",
		Columns: Columns,
		Rows:    Rows(m, opts),
	}
	if err := browsableTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("rendering browsable table: %w", err)
	}
	return nil
}
