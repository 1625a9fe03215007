package fits

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/stampcut/internal/conv"
)

var (
	// ErrNotImage is returned for a primary HDU without a 2-D image.
	ErrNotImage = errors.New("fits: primary HDU is not a two-dimensional image")
	// ErrUnsupportedBitpix is returned for BITPIX values outside 8, 16, 32,
	// 64, -32 and -64.
	ErrUnsupportedBitpix = errors.New("fits: unsupported BITPIX")
	// ErrWindowOutOfBounds is returned when a read window leaves the image.
	ErrWindowOutOfBounds = errors.New("fits: window outside image")
)

// BytesPerPixel returns |BITPIX|/8, or 0 for unsupported values.
func BytesPerPixel(bitpix int) int {
	switch bitpix {
	case 8, 16, 32, 64, -32, -64:
		if bitpix < 0 {
			return -bitpix / 8
		}
		return bitpix / 8
	}
	return 0
}

// ImageReader reads pixel windows from the primary image of a FITS file.
// Values are returned as float32 after BSCALE/BZERO; integer pixels equal to
// BLANK become NaN.
type ImageReader struct {
	r          ReaderAt
	dataOffset int64

	Bitpix int
	Naxis1 int
	Naxis2 int

	bscale   float64
	bzero    float64
	blank    int64
	hasBlank bool
}

// NewImageReader validates the image keywords of h. dataOffset is the
// position of the data unit, as returned by ReadHeader.
func NewImageReader(r ReaderAt, h *Header, dataOffset int64) (*ImageReader, error) {
	naxis, ok := h.Int("NAXIS")
	if !ok || naxis < 2 {
		return nil, ErrNotImage
	}
	n1, ok1 := h.Int("NAXIS1")
	n2, ok2 := h.Int("NAXIS2")
	if !ok1 || !ok2 || n1 <= 0 || n2 <= 0 {
		return nil, ErrNotImage
	}
	for i := 3; i <= naxis; i++ {
		if n, ok := h.Int(fmt.Sprintf("NAXIS%d", i)); ok && n > 1 {
			return nil, fmt.Errorf("%w: NAXIS%d = %d", ErrNotImage, i, n)
		}
	}

	bitpix, ok := h.Int("BITPIX")
	if !ok || BytesPerPixel(bitpix) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitpix, bitpix)
	}

	size, err := conv.MulInt64(int64(n1), int64(n2), int64(BytesPerPixel(bitpix)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if _, err := conv.Int64ToInt(size); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	ir := &ImageReader{
		r:          r,
		dataOffset: dataOffset,
		Bitpix:     bitpix,
		Naxis1:     n1,
		Naxis2:     n2,
		bscale:     1,
	}
	if v, ok := h.Float("BSCALE"); ok {
		ir.bscale = v
	}
	if v, ok := h.Float("BZERO"); ok {
		ir.bzero = v
	}
	if bitpix > 0 {
		if v, ok := h.Int("BLANK"); ok {
			ir.blank, ir.hasBlank = int64(v), true
		}
	}
	return ir, nil
}

// DataSize returns the unpadded size of the data unit in bytes.
func (ir *ImageReader) DataSize() int64 {
	return int64(ir.Naxis1) * int64(ir.Naxis2) * int64(BytesPerPixel(ir.Bitpix))
}

// ReadWindow returns the pixels of the inclusive 1-based rectangle
// [fx,lx] x [fy,ly] in row-major order, x fastest.
func (ir *ImageReader) ReadWindow(ctx context.Context, fx, fy, lx, ly int) ([]float32, error) {
	if fx < 1 || fy < 1 || lx > ir.Naxis1 || ly > ir.Naxis2 || lx < fx || ly < fy {
		return nil, fmt.Errorf("%w: [%d:%d,%d:%d] in %dx%d", ErrWindowOutOfBounds, fx, lx, fy, ly, ir.Naxis1, ir.Naxis2)
	}

	bpp := BytesPerPixel(ir.Bitpix)
	width := lx - fx + 1
	height := ly - fy + 1
	out := make([]float32, width*height)

	// Full-width windows are contiguous and read in one call.
	if width == ir.Naxis1 {
		buf := make([]byte, width*height*bpp)
		if err := ir.readFull(ctx, buf, ir.offset(1, fy)); err != nil {
			return nil, err
		}
		ir.decode(buf, out)
		return out, nil
	}

	row := make([]byte, width*bpp)
	for y := fy; y <= ly; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := ir.readFull(ctx, row, ir.offset(fx, y)); err != nil {
			return nil, err
		}
		ir.decode(row, out[(y-fy)*width:(y-fy+1)*width])
	}
	return out, nil
}

// ReadAll returns every pixel of the image.
func (ir *ImageReader) ReadAll(ctx context.Context) ([]float32, error) {
	return ir.ReadWindow(ctx, 1, 1, ir.Naxis1, ir.Naxis2)
}

func (ir *ImageReader) offset(x, y int) int64 {
	idx := int64(y-1)*int64(ir.Naxis1) + int64(x-1)
	return ir.dataOffset + idx*int64(BytesPerPixel(ir.Bitpix))
}

func (ir *ImageReader) readFull(ctx context.Context, buf []byte, off int64) error {
	n, err := ir.r.ReadAt(ctx, buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("fits: short read at %d: %w", off, io.ErrUnexpectedEOF)
	}
	return err
}

func (ir *ImageReader) decode(src []byte, dst []float32) {
	be := binary.BigEndian
	for i := range dst {
		var (
			v     float64
			isNaN bool
		)
		switch ir.Bitpix {
		case 8:
			raw := int64(src[i])
			isNaN = ir.hasBlank && raw == ir.blank
			v = float64(raw)
		case 16:
			raw := int64(int16(be.Uint16(src[i*2:])))
			isNaN = ir.hasBlank && raw == ir.blank
			v = float64(raw)
		case 32:
			raw := int64(int32(be.Uint32(src[i*4:])))
			isNaN = ir.hasBlank && raw == ir.blank
			v = float64(raw)
		case 64:
			raw := int64(be.Uint64(src[i*8:]))
			isNaN = ir.hasBlank && raw == ir.blank
			v = float64(raw)
		case -32:
			v = float64(math.Float32frombits(be.Uint32(src[i*4:])))
		case -64:
			v = math.Float64frombits(be.Uint64(src[i*8:]))
		}
		if isNaN {
			dst[i] = float32(math.NaN())
			continue
		}
		dst[i] = float32(ir.bzero + ir.bscale*v)
	}
}

// Image is a fully decoded primary image.
type Image struct {
	Header *Header
	Naxis1 int
	Naxis2 int
	Data   []float32
}

// At returns the pixel at 1-based (x, y).
func (img *Image) At(x, y int) float32 {
	return img.Data[(y-1)*img.Naxis1+(x-1)]
}

// Decode reads a complete FITS file from data.
func Decode(ctx context.Context, data []byte) (*Image, error) {
	r := BytesReaderAt(data)
	h, off, err := ReadHeader(ctx, r)
	if err != nil {
		return nil, err
	}
	ir, err := NewImageReader(r, h, off)
	if err != nil {
		return nil, err
	}
	pix, err := ir.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return &Image{Header: h, Naxis1: ir.Naxis1, Naxis2: ir.Naxis2, Data: pix}, nil
}

var structuralKeys = map[string]bool{
	"SIMPLE": true, "BITPIX": true, "NAXIS": true, "NAXIS1": true, "NAXIS2": true,
	"EXTEND": true, "BSCALE": true, "BZERO": true, "BLANK": true, "END": true,
}

// Encode writes a BITPIX -32 primary image. Structural keys in h are
// replaced; other cards are copied after them in order. h may be nil.
func Encode(w io.Writer, h *Header, data []float32, naxis1, naxis2 int) error {
	if naxis1 <= 0 || naxis2 <= 0 || len(data) != naxis1*naxis2 {
		return fmt.Errorf("fits: %d pixels do not fill %dx%d", len(data), naxis1, naxis2)
	}

	out := NewHeader()
	_ = out.Set("SIMPLE", true, "conforms to FITS standard")
	_ = out.Set("BITPIX", -32, "array data type")
	_ = out.Set("NAXIS", 2, "number of array dimensions")
	_ = out.Set("NAXIS1", naxis1, "")
	_ = out.Set("NAXIS2", naxis2, "")
	if h != nil {
		for _, c := range h.cards {
			if structuralKeys[c.Key] {
				continue
			}
			out.add(c)
		}
	}
	if _, err := out.Encode(w); err != nil {
		return err
	}

	buf := make([]byte, len(data)*4)
	for i, v := range data {
		binary.BigEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	if rem := len(buf) % BlockSize; rem != 0 {
		buf = append(buf, make([]byte, BlockSize-rem)...)
	}
	_, err := w.Write(buf)
	return err
}

// EncodeBytes is Encode into a byte slice.
func EncodeBytes(h *Header, data []float32, naxis1, naxis2 int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, h, data, naxis1, naxis2); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BytesReaderAt adapts a byte slice to ReaderAt.
type BytesReaderAt []byte

// ReadAt implements ReaderAt.
func (b BytesReaderAt) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, errors.New("fits: negative offset")
	}
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
