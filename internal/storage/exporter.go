package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maltedev/olx-scraper/internal/models"
)

const noListingsLine = "No listings found.\n"

type ExportPaths struct {
	Text string `json:"txt"`
	CSV  string `json:"csv"`
	JSON string `json:"json"`
}

func (p ExportPaths) All() []string {
	return []string{p.Text, p.CSV, p.JSON}
}

// Exporter writes the listings of a run as a text report, a CSV table and a
// JSON array sharing one timestamped base name.
type Exporter struct {
	dir string
	now func() time.Time
}

func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir, now: time.Now}
}

// BaseName returns olx_<query with underscores>_<YYYYMMDD_HHMMSS>.
func BaseName(query string, at time.Time) string {
	slug := strings.NewReplacer(" ", "_", "/", "_", `\`, "_").Replace(query)
	return fmt.Sprintf("olx_%s_%s", slug, at.Format("20060102_150405"))
}

func (e *Exporter) Export(query string, listings []models.Listing) (*ExportPaths, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create output dir: %w", err)
	}

	base := filepath.Join(e.dir, BaseName(query, e.now()))
	paths := &ExportPaths{
		Text: base + ".txt",
		CSV:  base + ".csv",
		JSON: base + ".json",
	}

	jsonData, err := renderJSON(listings)
	if err != nil {
		return nil, err
	}
	csvData, err := renderCSV(listings)
	if err != nil {
		return nil, err
	}

	outputs := []struct {
		path string
		data []byte
	}{
		{paths.Text, renderText(query, listings)},
		{paths.CSV, csvData},
		{paths.JSON, jsonData},
	}
	for _, out := range outputs {
		if err := writeFileAtomic(out.path, out.data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", out.path, err)
		}
	}

	return paths, nil
}

func renderText(query string, listings []models.Listing) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "OLX Search Results for '%s'\n", query)
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if len(listings) == 0 {
		b.WriteString(noListingsLine)
		return b.Bytes()
	}

	for i, l := range listings {
		fmt.Fprintf(&b, "Listing #%d\n", i+1)
		fmt.Fprintf(&b, "Title: %s\n", l.Title)
		fmt.Fprintf(&b, "Price: %s\n", l.Price)
		fmt.Fprintf(&b, "Location: %s\n", l.Location)
		fmt.Fprintf(&b, "Date Posted: %s\n", l.DatePosted)
		fmt.Fprintf(&b, "URL: %s\n", l.URL)
		b.WriteString(strings.Repeat("-", 60) + "\n")
	}

	return b.Bytes()
}

func renderCSV(listings []models.Listing) ([]byte, error) {
	if len(listings) == 0 {
		return []byte(noListingsLine), nil
	}

	var b bytes.Buffer
	w := csv.NewWriter(&b)
	w.UseCRLF = true

	if err := w.Write(models.CSVHeader); err != nil {
		return nil, fmt.Errorf("csv write error: %w", err)
	}
	for _, l := range listings {
		if err := w.Write(l.CSVRecord()); err != nil {
			return nil, fmt.Errorf("csv write error: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv write error: %w", err)
	}
	return b.Bytes(), nil
}

func renderJSON(listings []models.Listing) ([]byte, error) {
	if listings == nil {
		listings = []models.Listing{}
	}

	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(listings); err != nil {
		return nil, fmt.Errorf("failed to encode listings: %w", err)
	}
	return b.Bytes(), nil
}

// writeFileAtomic writes to a temp file first so readers never observe a
// partially written export.
func writeFileAtomic(path string, data []byte) error {
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return err
	}
	return nil
}
