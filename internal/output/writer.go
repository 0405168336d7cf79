package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Record is one extracted speech row as written to disk.
type Record struct {
	Date       string `json:"date"`
	Chamber    string `json:"chamber"`
	Speaker    string `json:"speaker"`
	BioguideID string `json:"bioguide_id"`
	Title      string `json:"title"`
	Page       string `json:"page"`
	PackageID  string `json:"package_id"`
	GranuleID  string `json:"granule_id"`
	Text       string `json:"text"`
	Method     string `json:"method"`
}

// csvHeader is the CSV column order, kept stable for downstream consumers.
var csvHeader = []string{
	"date", "chamber", "speaker", "bioguide_id", "title",
	"page", "package_id", "granule_id", "text", "method",
}

func (r Record) row() []string {
	return []string{
		r.Date, r.Chamber, r.Speaker, r.BioguideID, r.Title,
		r.Page, r.PackageID, r.GranuleID, r.Text, r.Method,
	}
}

// JSONLWriter appends records to a line-delimited JSON file, one object per
// line. Writes are sequential and flushed per line, so an aborted run leaves
// a valid prefix of the output.
type JSONLWriter struct {
	f   *os.File
	enc *json.Encoder
}

// NewJSONLWriter creates (or truncates) the file at path.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{f: f, enc: enc}, nil
}

func (w *JSONLWriter) Append(rec Record) error {
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

func (w *JSONLWriter) Close() error {
	return w.f.Close()
}

// ToCSV reads a finished JSONL file back and writes the same records as CSV
// with a header row and standard quoting. Blank lines are skipped. Returns
// the number of data rows written.
func ToCSV(jsonlPath, csvPath string) (int, error) {
	in, err := os.Open(jsonlPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", jsonlPath, err)
	}
	defer in.Close()

	out, err := os.Create(csvPath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", csvPath, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	// Speeches can run long; grow the scanner buffer well past the default.
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	rows := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return rows, fmt.Errorf("parse line %d of %s: %w", rows+1, jsonlPath, err)
		}
		if err := w.Write(rec.row()); err != nil {
			return rows, fmt.Errorf("write row: %w", err)
		}
		rows++
	}
	if err := sc.Err(); err != nil {
		return rows, fmt.Errorf("read %s: %w", jsonlPath, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return rows, fmt.Errorf("flush csv: %w", err)
	}
	return rows, out.Close()
}
