package partition

import "errors"

// NonIndex marks an unused cell in the sentinel view. It never equals a valid
// item index.
const NonIndex = -1

// ErrInvalidWorkers is returned when the worker count is not positive.
var ErrInvalidWorkers = errors.New("partition: worker count must be positive")

// ErrInvalidItems is returned when the item count is negative.
var ErrInvalidItems = errors.New("partition: item count must not be negative")

// Table holds the item indices owned by each worker.
type Table struct {
	// Rows[w] lists the items owned by worker w, in ascending order.
	Rows [][]int
	// Columns is the width of the sentinel view: N/T + 2.
	Columns int
}

// Partition distributes the indices 0..n-1 over t workers.
func Partition(n, t int) (Table, error) {
	if t <= 0 {
		return Table{}, ErrInvalidWorkers
	}
	if n < 0 {
		return Table{}, ErrInvalidItems
	}

	rows := make([][]int, t)
	for w := range rows {
		size := n / t
		if w < n%t {
			size++
		}
		rows[w] = make([]int, 0, size)
	}
	for i := 0; i < n; i++ {
		rows[i%t] = append(rows[i%t], i)
	}

	return Table{Rows: rows, Columns: n/t + 2}, nil
}

// Workers returns the number of rows, including empty ones.
func (t Table) Workers() int { return len(t.Rows) }

// Active returns the number of workers that own at least one item. Workers
// with an empty row are not spawned.
func (t Table) Active() int {
	n := 0
	for _, r := range t.Rows {
		if len(r) > 0 {
			n++
		}
	}
	return n
}

// Len returns the total number of items across all rows.
func (t Table) Len() int {
	n := 0
	for _, r := range t.Rows {
		n += len(r)
	}
	return n
}

// Cells returns the sentinel view: a row-major [Workers][Columns] array in
// which each row is terminated by NonIndex.
func (t Table) Cells() []int {
	cells := make([]int, len(t.Rows)*t.Columns)
	for i := range cells {
		cells[i] = NonIndex
	}
	for w, r := range t.Rows {
		copy(cells[w*t.Columns:], r)
	}
	return cells
}
