package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

type csvRow struct {
	Date   string `csv:"date"`
	Open   string `csv:"open"`
	High   string `csv:"high"`
	Low    string `csv:"low"`
	Close  string `csv:"close"`
	Volume string `csv:"volume"`
}

func loadCSV(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var rows []csvRow
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}

	out := make([]Record, 0, len(rows))
	for i, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func checkHeader(header []string) error {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	var missing []string
	for _, col := range requiredColumns {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (r csvRow) record() (Record, error) {
	rec := Record{Time: strings.TrimSpace(r.Date)}
	if rec.Time == "" {
		return Record{}, fmt.Errorf("empty date")
	}
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", r.Open, &rec.Open},
		{"high", r.High, &rec.High},
		{"low", r.Low, &rec.Low},
		{"close", r.Close, &rec.Close},
	}
	for _, f := range fields {
		v, err := parseNumber(f.name, f.raw)
		if err != nil {
			return Record{}, err
		}
		*f.dst = v
	}
	vol, err := parseNumber("volume", r.Volume)
	if err != nil {
		return Record{}, err
	}
	if rec.Volume, err = toVolume(vol); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func parseNumber(name, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty %s", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}
