// Package pixrange reconciles the pixel window a postage stamp needs from a
// source image with the window it occupies in the stamp.
//
// All ranges are 1-based and inclusive, the FITS addressing convention: the
// first pixel of an image is (1,1) and pixel centers sit on integer
// coordinates.
package pixrange

import (
	"errors"
	"fmt"
	"math"
)

// ErrEvenSide is returned when the stamp side is not a positive odd number.
var ErrEvenSide = errors.New("pixrange: side must be a positive odd number")

// Range is an inclusive 1-based pixel interval on one axis.
type Range struct {
	First int
	Last  int
}

// Len returns the number of pixels in the range, or 0 when Last < First.
func (r Range) Len() int {
	if r.Last < r.First {
		return 0
	}
	return r.Last - r.First + 1
}

// Window is the pair of matching source and destination ranges on both axes.
type Window struct {
	SrcX, SrcY Range
	DstX, DstY Range
}

// Empty reports whether the window transfers no pixels.
func (w Window) Empty() bool {
	return w.SrcX.Len() == 0 || w.SrcY.Len() == 0
}

// Offset returns the shift from destination to source pixel coordinates.
// A destination pixel (x, y) holds source pixel (x+dx, y+dy).
func (w Window) Offset() (dx, dy int) {
	return w.SrcX.First - w.DstX.First, w.SrcY.First - w.DstY.First
}

func (w Window) String() string {
	return fmt.Sprintf("src[%d:%d,%d:%d] dst[%d:%d,%d:%d]",
		w.SrcX.First, w.SrcX.Last, w.SrcY.First, w.SrcY.Last,
		w.DstX.First, w.DstX.Last, w.DstY.First, w.DstY.Last)
}

// Round converts a continuous pixel coordinate to the pixel that contains it.
// Exact halves go to the lower pixel: Round(5.5) == 5, Round(5.51) == 6.
func Round(a float64) int {
	b := math.Trunc(a)
	if a-b > 0.5 {
		b++
	}
	return int(b)
}

// Resolve computes the edge-clipped windows for a stamp of the given side
// centered on the continuous position (x, y) in an image of naxis1 x naxis2
// pixels.
//
// On each axis the source-window length always equals the destination-window
// length. If the stamp does not overlap the image on some axis, the returned
// window is Empty.
func Resolve(x, y float64, naxis1, naxis2, side int) (Window, error) {
	if side <= 0 || side%2 == 0 {
		return Window{}, ErrEvenSide
	}

	srcX, dstX := resolveAxis(Round(x), naxis1, side)
	srcY, dstY := resolveAxis(Round(y), naxis2, side)

	return Window{SrcX: srcX, SrcY: srcY, DstX: dstX, DstY: dstY}, nil
}

func resolveAxis(center, naxis, side int) (src, dst Range) {
	hw := side / 2

	dst = Range{First: 1, Last: side}
	src = Range{First: center - hw, Last: center + hw}

	if src.First < 1 {
		dst.First = -src.First + 2
		src.First = 1
	}
	if src.Last > naxis {
		dst.Last = side - (src.Last - naxis)
		src.Last = naxis
	}

	// No overlap on this axis: collapse both ranges to the same empty span so
	// the length invariant still holds.
	if src.Last < src.First || dst.Last < dst.First {
		src = Range{First: src.First, Last: src.First - 1}
		dst = Range{First: dst.First, Last: dst.First - 1}
	}

	return src, dst
}
