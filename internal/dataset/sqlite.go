package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// loadSQLite reads bars from a table holding the same columns as the CSV
// export, in rowid order. The database is opened read-only.
func loadSQLite(ctx context.Context, path, table string) ([]Record, error) {
	if table == "" {
		table = "bars"
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=3000;"); err != nil {
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT date, open, high, low, close, volume FROM `+table+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			date       any
			o, h, l, c sql.NullFloat64
			volume     sql.NullFloat64
		)
		if err := rows.Scan(&date, &o, &h, &l, &c, &volume); err != nil {
			return nil, fmt.Errorf("row %d: scan: %w", len(out)+1, err)
		}
		rec, err := sqliteRecord(date, o, h, l, c, volume)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

func sqliteRecord(date any, o, h, l, c, volume sql.NullFloat64) (Record, error) {
	ts, err := formatDate(date)
	if err != nil {
		return Record{}, err
	}
	rec := Record{Time: ts}
	for _, f := range []struct {
		name string
		v    sql.NullFloat64
		dst  *float64
	}{
		{"open", o, &rec.Open},
		{"high", h, &rec.High},
		{"low", l, &rec.Low},
		{"close", c, &rec.Close},
	} {
		if !f.v.Valid {
			return Record{}, fmt.Errorf("null %s", f.name)
		}
		*f.dst = f.v.Float64
	}
	if !volume.Valid {
		return Record{}, fmt.Errorf("null volume")
	}
	if rec.Volume, err = toVolume(volume.Float64); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func formatDate(v any) (string, error) {
	switch t := v.(type) {
	case string:
		if t != "" {
			return t, nil
		}
	case []byte:
		if len(t) > 0 {
			return string(t), nil
		}
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case time.Time:
		return t.Format(time.RFC3339), nil
	}
	return "", fmt.Errorf("empty date")
}
