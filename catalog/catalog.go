// Package catalog reads and writes plain-text numeric tables.
//
// A table file holds one row per line. Lines starting with '#' are comments
// and are kept verbatim. Cells are separated by spaces, tabs or commas. Every
// data row must have as many cells as the first one. Cells that do not parse
// as numbers are replaced by Replacement and their positions are recorded.
package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Replacement is stored in place of a non-numeric cell.
const Replacement = -9999

// CommentSign starts a comment line.
const CommentSign = '#'

// ErrEmpty is returned when a table has no data rows.
var ErrEmpty = errors.New("catalog: table has no data rows")

// RowWidthError reports a data row whose cell count differs from the first
// data row.
type RowWidthError struct {
	Line     int // 1-based line number in the input
	Expected int
	Actual   int
}

func (e *RowWidthError) Error() string {
	return fmt.Sprintf("catalog: line %d has %d cells, expected %d", e.Line, e.Actual, e.Expected)
}

// Cell addresses one table cell (zero-based).
type Cell struct {
	Row int
	Col int
}

// Table is a parsed numeric table.
type Table struct {
	// Data holds the rows and columns of the table.
	Data *mat.Dense
	// Comment is the concatenated text of all comment lines, newlines kept.
	Comment string
	// Replaced lists the cells that were not numeric.
	Replaced []Cell
}

// Dims returns the number of rows and columns.
func (t *Table) Dims() (rows, cols int) {
	if t.Data == nil {
		return 0, 0
	}
	return t.Data.Dims()
}

// At returns the value at row i, column j.
func (t *Table) At(i, j int) float64 {
	return t.Data.At(i, j)
}

// Column returns a copy of column j.
func (t *Table) Column(j int) []float64 {
	rows, _ := t.Dims()
	out := make([]float64, rows)
	mat.Col(out, j, t.Data)
	return out
}

// ReadFile parses the table stored at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return t, nil
}

// Parse reads a table from r.
func Parse(r io.Reader) (*Table, error) {
	var (
		comment  strings.Builder
		data     []float64
		replaced []Cell
		cols     int
		rows     int
		line     int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for sc.Scan() {
		line++
		text := sc.Text()

		if len(text) > 0 && text[0] == CommentSign {
			comment.WriteString(text)
			comment.WriteByte('\n')
			continue
		}

		cells := splitCells(text)
		if len(cells) == 0 {
			continue
		}

		if cols == 0 {
			cols = len(cells)
		} else if len(cells) != cols {
			return nil, &RowWidthError{Line: line, Expected: cols, Actual: len(cells)}
		}

		for j, c := range cells {
			v, err := strconv.ParseFloat(c, 64)
			if err != nil {
				v = Replacement
				replaced = append(replaced, Cell{Row: rows, Col: j})
			}
			data = append(data, v)
		}
		rows++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	t := &Table{Comment: comment.String(), Replaced: replaced}
	if rows == 0 {
		return t, ErrEmpty
	}
	t.Data = mat.NewDense(rows, cols, data)
	return t, nil
}

func splitCells(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == '\r'
	})
}
