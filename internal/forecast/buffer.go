package forecast

// buffer is the iterative state: the historical window followed by one
// generated row per step, stored in a single arena sized up front.
type buffer struct {
	data  []float64
	width int
	rows  int
}

func newBuffer(history [][]float64, width, horizon int) *buffer {
	b := &buffer{
		data:  make([]float64, (len(history)+horizon)*width),
		width: width,
	}
	for _, row := range history {
		copy(b.data[b.rows*b.width:], row)
		b.rows++
	}
	return b
}

// last returns a view of the most recent row.
func (b *buffer) last() []float64 {
	start := (b.rows - 1) * b.width
	return b.data[start : start+b.width]
}

// next claims the following row, initialised as a copy of the last one,
// and returns it for writing.
func (b *buffer) next() []float64 {
	prev := b.last()
	start := b.rows * b.width
	row := b.data[start : start+b.width]
	copy(row, prev)
	b.rows++
	return row
}

// Len returns the number of rows held.
func (b *buffer) Len() int {
	return b.rows
}
