package replay

import "stockverse/internal/dataset"

// WindowServer hands out overlapping slices of the dataset. Each call starts
// at the shared cursor and slides it forward by one record, whatever the
// requested size.
type WindowServer struct {
	data   *dataset.Dataset
	cursor *Cursor
}

func NewWindowServer(data *dataset.Dataset) *WindowServer {
	return &WindowServer{data: data, cursor: NewCursor(data.Len())}
}

// Window returns data[start:min(start+limit, n)]. Near the end of the
// dataset the result is a shorter suffix; it never wraps within a response.
func (w *WindowServer) Window(limit int) []dataset.Record {
	n := w.data.Len()
	limit = ClampLimit(limit, n)
	start := w.cursor.AdvanceAndGet()
	end := start + limit
	if end > n {
		end = n
	}
	return w.data.Slice(start, end)
}

// Position is the start offset the next Window call will use.
func (w *WindowServer) Position() int {
	return w.cursor.Peek()
}

func ClampLimit(limit, n int) int {
	if limit < 1 {
		return 1
	}
	if limit > n {
		return n
	}
	return limit
}
