package replay

import (
	"sync"

	"github.com/moznion/go-optional"

	"stockverse/internal/dataset"
)

// Point is the single-value view of a record: its time and opening price.
// Both fields are null before anything has been emitted.
type Point struct {
	Time  *string  `json:"time"`
	Value *float64 `json:"value"`
}

func pointOf(rec dataset.Record) Point {
	t, v := rec.Time, rec.Open
	return Point{Time: &t, Value: &v}
}

// SequentialServer emits the dataset one record per call, looping back to the
// first record after the last.
type SequentialServer struct {
	data *dataset.Dataset

	mu   sync.Mutex
	next int
	last optional.Option[dataset.Record]
}

func NewSequentialServer(data *dataset.Dataset) *SequentialServer {
	return &SequentialServer{data: data, last: optional.None[dataset.Record]()}
}

func (s *SequentialServer) Next() Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.data.At(s.next)
	s.next = (s.next + 1) % s.data.Len()
	s.last = optional.Some(rec)
	return pointOf(rec)
}

// Current returns the point most recently returned by Next without moving
// the stream.
func (s *SequentialServer) Current() Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last.IsNone() {
		return Point{}
	}
	return pointOf(s.last.Unwrap())
}
