package export

// DefaultChunkSize is the number of rows rendered per work unit.
const DefaultChunkSize = 100

// WorkUnit is a contiguous row range [StartRow, EndRow) and its rendered text.
//
// A unit is owned by exactly one stage at a time: the queue, the worker
// rendering it, the reorder buffer, then the writer. It is never modified
// after rendering.
type WorkUnit struct {
	StartRow int64
	EndRow   int64

	// Header is only set on the unit starting at row 0.
	Header string

	text         []byte
	renderErrors int
}

// Rows returns the number of rows covered by the unit.
func (u *WorkUnit) Rows() int64 { return u.EndRow - u.StartRow }

// Text returns the rendered rows. It is empty until the unit is rendered.
func (u *WorkUnit) Text() []byte { return u.text }

// Partition tiles [0, totalRows) with units of at most chunkSize rows in
// ascending order. The header is attached to the first unit. A chunkSize
// below 1 uses DefaultChunkSize.
func Partition(totalRows int64, chunkSize int, header string) []*WorkUnit {
	if totalRows <= 0 {
		return nil
	}
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	size := int64(chunkSize)

	units := make([]*WorkUnit, 0, (totalRows+size-1)/size)
	for start := int64(0); start < totalRows; start += size {
		end := min(start+size, totalRows)
		u := &WorkUnit{StartRow: start, EndRow: end}
		if start == 0 {
			u.Header = header
		}
		units = append(units, u)
	}
	return units
}
