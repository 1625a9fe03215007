package catalog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Format controls how one column is printed.
type Format struct {
	// Width is the minimum field width; values are right-aligned.
	Width int
	// Precision is the number of decimals for non-integer columns.
	Precision int
	// Integer prints the value rounded toward zero without decimals.
	Integer bool
}

// DefaultFormat is used for columns without an explicit format.
var DefaultFormat = Format{Width: 12, Precision: 4}

func (f Format) format(v float64) string {
	var s string
	if f.Integer {
		s = strconv.FormatInt(int64(v), 10)
	} else {
		s = strconv.FormatFloat(v, 'f', f.Precision, 64)
	}
	if pad := f.Width - len(s); pad > 0 {
		s = strings.Repeat(" ", pad) + s
	}
	return s
}

// Write prints the matrix to w, one row per line, preceded by the comment
// text. Every comment line is prefixed with '#' if it is not already.
// formats[j] applies to column j; missing entries use DefaultFormat.
func Write(w io.Writer, data mat.Matrix, comment string, formats []Format) error {
	bw := bufio.NewWriter(w)

	if comment != "" {
		for _, line := range strings.Split(strings.TrimRight(comment, "\n"), "\n") {
			if !strings.HasPrefix(line, string(CommentSign)) {
				line = string(CommentSign) + " " + line
			}
			if _, err := fmt.Fprintln(bw, line); err != nil {
				return err
			}
		}
	}

	rows, cols := data.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			f := DefaultFormat
			if j < len(formats) {
				f = formats[j]
			}
			if j > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(f.format(data.At(i, j))); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// WriteFile writes the matrix to path, truncating any existing file.
func WriteFile(path string, data mat.Matrix, comment string, formats []Format) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("catalog: create %s: %w", path, err)
	}
	if err := Write(f, data, comment, formats); err != nil {
		_ = f.Close()
		return fmt.Errorf("catalog: write %s: %w", path, err)
	}
	return f.Close()
}
