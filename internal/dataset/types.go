package dataset

import "errors"

// ErrDataUnavailable is returned by Load when the source cannot back a feed:
// unreadable, empty, or missing a required column or value.
var ErrDataUnavailable = errors.New("dataset unavailable")

var requiredColumns = []string{"date", "open", "high", "low", "close", "volume"}

type Record struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// Dataset is the loaded series. It is never mutated after Load returns and is
// safe to share between goroutines.
type Dataset struct {
	records []Record
}

func New(records []Record) *Dataset {
	cp := make([]Record, len(records))
	copy(cp, records)
	return &Dataset{records: cp}
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

func (d *Dataset) At(i int) Record {
	return d.records[i]
}

// Slice returns a copy of records[start:end].
func (d *Dataset) Slice(start, end int) []Record {
	out := make([]Record, end-start)
	copy(out, d.records[start:end])
	return out
}
