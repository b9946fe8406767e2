package features

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ReadCSV loads a features CSV (plain or .gz) and returns its rows normalized
// against cols. The header row names the columns; extra columns are ignored.
func ReadCSV(path string, cols []string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip open failed: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return ParseCSV(reader, cols)
}

// ParseCSV reads feature rows from a CSV stream.
func ParseCSV(reader io.Reader, cols []string) ([]Row, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("features CSV is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("header read failed: %w", err)
	}

	var raws []map[string]any
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CSV read error (row %d): %w", len(raws)+1, err)
		}
		if len(record) == 0 || (len(record) == 1 && record[0] == "") {
			continue
		}

		raw := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(record) {
				raw[strings.TrimSpace(name)] = record[i]
			}
		}
		raws = append(raws, raw)
	}

	if len(raws) == 0 {
		return nil, fmt.Errorf("features CSV has no data rows")
	}

	vecs := NormalizeRows(raws, cols)
	rows := make([]Row, len(vecs))
	for i, vec := range vecs {
		rows[i] = ToRow(cols, vec)
	}
	return rows, nil
}

// WriteCSV writes a single feature row in canonical column order. Missing
// values are left as empty cells so the reader can impute them.
func WriteCSV(path string, cols []string, row Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file failed: %w", err)
	}

	w := csv.NewWriter(f)
	record := make([]string, len(cols))
	if err := w.Write(cols); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	for i, c := range cols {
		v, ok := row[c]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			record[i] = ""
			continue
		}
		record[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if err := w.Write(record); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	f.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename failed: %w", err)
	}
	return nil
}
