// Package resultlog records one status entry per catalog target and writes
// the run log and the final report.
package resultlog

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/stampcut/catalog"
)

// Status is the outcome for one target.
type Status int

const (
	// OK means a stamp was written.
	OK Status = iota
	// CenterBlank means images were processed but the center window is all
	// zero.
	CenterBlank
	// NotInField means no image covers the target.
	NotInField
	// Failed means an image or storage operation failed for the target.
	Failed
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case CenterBlank:
		return "center-blank"
	case NotInField:
		return "not-in-field"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Statuses lists every status in flag order.
var Statuses = []Status{OK, CenterBlank, NotInField, Failed}

var (
	// ErrAlreadyWritten is returned when an entry is recorded twice.
	ErrAlreadyWritten = errors.New("resultlog: entry already written")
	// ErrOutOfRange is returned for a target index outside the table.
	ErrOutOfRange = errors.New("resultlog: target index out of range")
)

// Entry is the log row of one target.
type Entry struct {
	// Target is the zero-based catalog row.
	Target int
	// ID names the target in outputs.
	ID string
	// Images is the number of images processed for the target.
	Images int
	Status Status
	// Reason explains a Failed status.
	Reason string
}

// Table holds one entry per target. Distinct targets may be recorded
// concurrently; each target is recorded at most once.
type Table struct {
	entries []Entry
	written []atomic.Bool
}

// New creates a table for n targets.
func New(n int) *Table {
	return &Table{
		entries: make([]Entry, n),
		written: make([]atomic.Bool, n),
	}
}

// Len returns the number of targets.
func (t *Table) Len() int { return len(t.entries) }

// Record stores e at row e.Target.
func (t *Table) Record(e Entry) error {
	if e.Target < 0 || e.Target >= len(t.entries) {
		return fmt.Errorf("%w: %d", ErrOutOfRange, e.Target)
	}
	if !t.written[e.Target].CompareAndSwap(false, true) {
		return fmt.Errorf("%w: target %d", ErrAlreadyWritten, e.Target)
	}
	t.entries[e.Target] = e
	return nil
}

// Get returns the entry of target i and whether it was recorded.
func (t *Table) Get(i int) (Entry, bool) {
	if i < 0 || i >= len(t.entries) || !t.written[i].Load() {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Entries returns the recorded entries in target order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for i := range t.entries {
		if t.written[i].Load() {
			out = append(out, t.entries[i])
		}
	}
	return out
}

// Missing returns the targets that were never recorded.
func (t *Table) Missing() []int {
	var out []int
	for i := range t.entries {
		if !t.written[i].Load() {
			out = append(out, i)
		}
	}
	return out
}

func (t *Table) matrix() *mat.Dense {
	entries := t.Entries()
	if len(entries) == 0 {
		return nil
	}
	m := mat.NewDense(len(entries), 3, nil)
	for i, e := range entries {
		m.Set(i, 0, float64(e.Target+1))
		m.Set(i, 1, float64(e.Images))
		m.Set(i, 2, float64(e.Status))
	}
	return m
}

const logComment = "# Column 1: target row in the catalog (counting from 1)\n" +
	"# Column 2: number of survey images used\n" +
	"# Column 3: status (0 ok, 1 center blank, 2 not in field, 3 failed)\n"

// WriteLog writes the plain-text log: one line per recorded target with
// columns (target, images, status).
func (t *Table) WriteLog(w io.Writer) error {
	return t.write(w, logComment, []catalog.Format{
		{Integer: true}, {Integer: true}, {Integer: true},
	})
}

// WriteReport writes the same columns as WriteLog in fixed-width form,
// followed by one comment line per failure reason.
func (t *Table) WriteReport(w io.Writer) error {
	comment := logComment
	for _, e := range t.Entries() {
		if e.Status == Failed && e.Reason != "" {
			comment += fmt.Sprintf("# target %d (%s): %s\n", e.Target+1, e.ID, e.Reason)
		}
	}
	return t.write(w, comment, []catalog.Format{
		{Width: 8, Integer: true}, {Width: 6, Integer: true}, {Width: 4, Integer: true},
	})
}

func (t *Table) write(w io.Writer, comment string, formats []catalog.Format) error {
	m := t.matrix()
	if m == nil {
		_, err := io.WriteString(w, comment)
		return err
	}
	return catalog.Write(w, m, comment, formats)
}
