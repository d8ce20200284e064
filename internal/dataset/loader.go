package dataset

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// Source names where the series lives. Format is inferred from the file
// extension when empty; Table is only used by the sqlite format.
type Source struct {
	Path   string
	Format string
	Table  string
}

func (s Source) format() string {
	if s.Format != "" {
		return strings.ToLower(s.Format)
	}
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatCSV
	}
}

// Load reads the whole source into memory. Every failure wraps
// ErrDataUnavailable.
func Load(ctx context.Context, src Source) (*Dataset, error) {
	if strings.TrimSpace(src.Path) == "" {
		return nil, fmt.Errorf("%w: empty source path", ErrDataUnavailable)
	}

	var (
		records []Record
		err     error
	)
	switch f := src.format(); f {
	case FormatCSV:
		records, err = loadCSV(src.Path)
	case FormatSQLite:
		records, err = loadSQLite(ctx, src.Path, src.Table)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrDataUnavailable, f)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, src.Path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s: no rows", ErrDataUnavailable, src.Path)
	}
	for i, r := range records {
		if err := validate(r); err != nil {
			return nil, fmt.Errorf("%w: %s: row %d: %v", ErrDataUnavailable, src.Path, i+1, err)
		}
	}
	return &Dataset{records: records}, nil
}

func validate(r Record) error {
	prices := []struct {
		name string
		v    float64
	}{{"open", r.Open}, {"high", r.High}, {"low", r.Low}, {"close", r.Close}}
	for _, p := range prices {
		if math.IsNaN(p.v) || math.IsInf(p.v, 0) {
			return fmt.Errorf("%s is not finite", p.name)
		}
	}
	if r.Volume < 0 {
		return fmt.Errorf("negative volume %d", r.Volume)
	}
	return nil
}

// toVolume accepts integral floats such as "1200.0" written by pandas.
func toVolume(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("volume %v is not an integer", v)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if v >= math.MaxInt64 || v < math.MinInt64 {
		return 0, fmt.Errorf("volume %v is out of range", v)
	}
	return int64(v), nil
}
