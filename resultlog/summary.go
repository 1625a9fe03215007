package resultlog

import (
	"fmt"
	"io"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/olekukonko/tablewriter"
)

// Summary aggregates a table by status.
type Summary struct {
	// Targets holds the zero-based target rows per status.
	Targets map[Status]*roaring.Bitmap
	// Images is the total number of image reads across targets.
	Images int
	// Missing counts targets never recorded.
	Missing int
}

// Summarize builds the summary of t.
func (t *Table) Summarize() *Summary {
	s := &Summary{Targets: make(map[Status]*roaring.Bitmap, len(Statuses))}
	for _, st := range Statuses {
		s.Targets[st] = roaring.New()
	}
	for i := range t.entries {
		if !t.written[i].Load() {
			s.Missing++
			continue
		}
		e := t.entries[i]
		bm, ok := s.Targets[e.Status]
		if !ok {
			bm = roaring.New()
			s.Targets[e.Status] = bm
		}
		bm.Add(uint32(e.Target))
		s.Images += e.Images
	}
	return s
}

// Count returns the number of targets with status st.
func (s *Summary) Count(st Status) int {
	bm, ok := s.Targets[st]
	if !ok {
		return 0
	}
	return int(bm.GetCardinality())
}

// Total returns the number of recorded targets.
func (s *Summary) Total() int {
	n := 0
	for _, bm := range s.Targets {
		n += int(bm.GetCardinality())
	}
	return n
}

// Render prints the summary as a table.
func (s *Summary) Render(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.Header("Status", "Flag", "Targets")

	rows := make([][]string, 0, len(Statuses)+2)
	for _, st := range Statuses {
		rows = append(rows, []string{st.String(), strconv.Itoa(int(st)), strconv.Itoa(s.Count(st))})
	}
	if s.Missing > 0 {
		rows = append(rows, []string{"missing", "-", strconv.Itoa(s.Missing)})
	}
	rows = append(rows, []string{"total", "-", fmt.Sprintf("%d (%d image reads)", s.Total(), s.Images)})

	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
