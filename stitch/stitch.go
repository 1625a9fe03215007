// Package stitch builds the postage stamp of one catalog target by copying
// the resolved pixel window of every matched survey image into a fixed-size
// canvas.
//
// The stamp artifact is created, all zero, before any pixel is copied, so an
// interrupted run leaves a discoverable artifact. When the result is not
// usable the artifact is deleted again.
package stitch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/stampcut/blobstore"
	"github.com/hupe1980/stampcut/fits"
	"github.com/hupe1980/stampcut/internal/compress"
	"github.com/hupe1980/stampcut/internal/resource"
	"github.com/hupe1980/stampcut/pixrange"
	"github.com/hupe1980/stampcut/resultlog"
	"github.com/hupe1980/stampcut/survey"
	"github.com/hupe1980/stampcut/wcs"
)

// DefaultCheckSize is the side of the center window tested for blank
// stamps.
const DefaultCheckSize = 3

// ErrWeightShape is returned when a weight window differs in size from its
// image window.
var ErrWeightShape = errors.New("stitch: weight window does not match image window")

// Target is one catalog object to cut.
type Target struct {
	// Index is the zero-based catalog row.
	Index int
	// ID names the output artifact.
	ID  string
	RA  float64
	Dec float64
	// Images are the matched survey image indices in discovery order.
	Images []int
}

// Config holds the stamp geometry and output naming.
type Config struct {
	// Side is the stamp side in pixels. It must be odd.
	Side int
	// StampArcsec is the requested stamp side in arcseconds.
	StampArcsec float64
	// Resolution is the survey pixel scale in arcsec/pixel.
	Resolution float64
	// CheckSize is the side of the center window tested for blank stamps.
	// Zero disables the test.
	CheckSize int
	// Prefix is prepended to the target ID to form the artifact name.
	Prefix string
	// Ext is appended to the target ID, e.g. ".fits".
	Ext string
	// Compression is applied to the written stamp; its extension is added
	// after Ext.
	Compression compress.Codec
	// RunID is stamped into every output header.
	RunID string
}

// Name returns the artifact name of a target ID.
func (c Config) Name(id string) string {
	return c.Prefix + id + c.Ext + c.Compression.Extension()
}

// Opener opens survey images.
type Opener interface {
	Open(ctx context.Context, name string) (*survey.Image, error)
	OpenPixels(ctx context.Context, name string) (*survey.Image, error)
}

// Observer receives per-operation measurements.
type Observer interface {
	RecordWindowRead(bytes int, duration time.Duration, err error)
	RecordStamp(status resultlog.Status, images int, duration time.Duration)
}

type noopObserver struct{}

func (noopObserver) RecordWindowRead(int, time.Duration, error)       {}
func (noopObserver) RecordStamp(resultlog.Status, int, time.Duration) {}

// Stitcher builds stamps. It is safe for concurrent use by distinct
// targets.
type Stitcher struct {
	cfg      Config
	tiles    []survey.Tile
	src      Opener
	out      blobstore.BlobStore
	rc       *resource.Controller
	observer Observer
}

// Option configures a Stitcher.
type Option func(*Stitcher)

// WithResourceController charges canvas memory to rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(s *Stitcher) { s.rc = rc }
}

// WithObserver sets the measurement sink.
func WithObserver(o Observer) Option {
	return func(s *Stitcher) {
		if o != nil {
			s.observer = o
		}
	}
}

// New creates a Stitcher. tiles[i] names survey image i and its optional
// weight map; weights are multiplied in when Weight is set.
func New(cfg Config, tiles []survey.Tile, src Opener, out blobstore.BlobStore, opts ...Option) (*Stitcher, error) {
	if cfg.Side <= 0 || cfg.Side%2 == 0 {
		return nil, pixrange.ErrEvenSide
	}
	if cfg.CheckSize < 0 {
		return nil, fmt.Errorf("stitch: negative check size %d", cfg.CheckSize)
	}
	s := &Stitcher{cfg: cfg, tiles: tiles, src: src, out: out, observer: noopObserver{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Stitch builds and stores the stamp of t and returns its log entry.
// Image and storage failures are reported as resultlog.Failed; the returned
// error is non-nil only when the run must stop (cancellation or an
// exhausted memory budget).
func (s *Stitcher) Stitch(ctx context.Context, t Target) (resultlog.Entry, error) {
	start := time.Now()
	entry := resultlog.Entry{Target: t.Index, ID: t.ID}

	images, err := s.stitch(ctx, t)
	entry.Images = images
	switch {
	case err == nil:
		entry.Status = resultlog.OK
	case errors.Is(err, errCenterBlank):
		entry.Status = resultlog.CenterBlank
	case errors.Is(err, errNotInField):
		entry.Status = resultlog.NotInField
	case ctx.Err() != nil || errors.Is(err, resource.ErrMemoryLimitExceeded):
		return entry, err
	default:
		entry.Status = resultlog.Failed
		entry.Reason = err.Error()
	}

	s.observer.RecordStamp(entry.Status, entry.Images, time.Since(start))
	return entry, nil
}

var (
	errCenterBlank = errors.New("center blank")
	errNotInField  = errors.New("not in field")
)

func (s *Stitcher) stitch(ctx context.Context, t Target) (images int, err error) {
	side := s.cfg.Side
	canvasBytes := int64(side) * int64(side) * 4
	if err := s.rc.AcquireMemory(ctx, canvasBytes); err != nil {
		return 0, err
	}
	defer s.rc.ReleaseMemory(canvasBytes)

	canvas := make([]float32, side*side)
	name := s.cfg.Name(t.ID)

	if err := s.put(ctx, name, nil, canvas); err != nil {
		return 0, fmt.Errorf("create %s: %w", name, err)
	}
	defer func() {
		if err != nil {
			if derr := s.out.Delete(context.WithoutCancel(ctx), name); derr != nil {
				err = fmt.Errorf("%w (delete %s: %v)", err, name, derr)
			}
		}
	}()

	var header *fits.Header
	for _, idx := range t.Images {
		if idx < 0 || idx >= len(s.tiles) {
			return images, fmt.Errorf("image index %d out of range", idx)
		}
		used, h, err := s.copyImage(ctx, t, s.tiles[idx], canvas)
		if err != nil {
			return images, err
		}
		if !used {
			continue
		}
		images++
		if header == nil {
			header = h
		}
	}

	if images == 0 {
		return 0, errNotInField
	}
	if isBlank(canvas, side, s.cfg.CheckSize) {
		return images, errCenterBlank
	}

	if err := header.Set("NSRCIMG", images, "number of survey images used"); err != nil {
		return images, err
	}
	if err := s.put(ctx, name, header, canvas); err != nil {
		return images, fmt.Errorf("write %s: %w", name, err)
	}
	return images, nil
}

// copyImage copies the window of one image into canvas. used is false when
// the target does not project onto the image or its window misses the
// image. The returned header carries the provenance of this image.
func (s *Stitcher) copyImage(ctx context.Context, t Target, tile survey.Tile, canvas []float32) (used bool, h *fits.Header, err error) {
	img, err := s.src.Open(ctx, tile.Image)
	if err != nil {
		return false, nil, err
	}
	defer img.Close()

	x, y, err := img.SkyToPixel(t.RA, t.Dec)
	if errors.Is(err, wcs.ErrOutsideProjection) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("%s: %w", tile.Image, err)
	}

	win, err := pixrange.Resolve(x, y, img.Naxis1, img.Naxis2, s.cfg.Side)
	if err != nil {
		return false, nil, err
	}

	// The footprint is an approximation; a matched image may still miss
	// the stamp.
	if win.Empty() {
		return false, nil, nil
	}

	pix, err := s.readWindow(ctx, img, win)
	if err != nil {
		return false, nil, err
	}
	if tile.Weight != "" {
		if err := s.applyWeight(ctx, tile.Weight, win, pix); err != nil {
			return false, nil, err
		}
	}
	paste(canvas, s.cfg.Side, win, pix)

	h, err = s.provenance(t, tile.Image, img.WCS, win)
	if err != nil {
		return false, nil, err
	}
	return true, h, nil
}

func (s *Stitcher) readWindow(ctx context.Context, img *survey.Image, win pixrange.Window) ([]float32, error) {
	start := time.Now()
	pix, err := img.ReadWindow(ctx, win.SrcX.First, win.SrcY.First, win.SrcX.Last, win.SrcY.Last)
	s.observer.RecordWindowRead(len(pix)*4, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", img.Name, win, err)
	}
	return pix, nil
}

func (s *Stitcher) applyWeight(ctx context.Context, name string, win pixrange.Window, pix []float32) error {
	wimg, err := s.src.OpenPixels(ctx, name)
	if err != nil {
		return err
	}
	defer wimg.Close()

	weights, err := s.readWindow(ctx, wimg, win)
	if err != nil {
		return err
	}
	if len(weights) != len(pix) {
		return fmt.Errorf("%w: %s", ErrWeightShape, name)
	}
	for i := range pix {
		pix[i] *= weights[i]
	}
	return nil
}

// paste writes the source window pixels into the destination window of the
// canvas.
func paste(canvas []float32, side int, win pixrange.Window, pix []float32) {
	w := win.DstX.Len()
	for row := 0; row < win.DstY.Len(); row++ {
		dst := (win.DstY.First-1+row)*side + win.DstX.First - 1
		copy(canvas[dst:dst+w], pix[row*w:(row+1)*w])
	}
}

// isBlank reports whether every pixel of the check window around the
// canvas center is exactly zero.
func isBlank(canvas []float32, side, check int) bool {
	if check <= 0 {
		return false
	}
	c := side/2 + 1
	lo := max(c-check/2, 1)
	hi := min(c+check/2, side)
	for y := lo; y <= hi; y++ {
		for x := lo; x <= hi; x++ {
			if canvas[(y-1)*side+x-1] != 0 {
				return false
			}
		}
	}
	return true
}

func (s *Stitcher) provenance(t Target, source string, w *wcs.WCS, win pixrange.Window) (*fits.Header, error) {
	h := fits.NewHeader()
	sets := []struct {
		key     string
		val     any
		comment string
	}{
		{"OBJRA", t.RA, "target right ascension (deg)"},
		{"OBJDEC", t.Dec, "target declination (deg)"},
		{"STMPSIZE", s.cfg.StampArcsec, "stamp side (arcsec)"},
		{"PIXSCALE", s.cfg.Resolution, "pixel scale (arcsec/pixel)"},
		{"SRCIMAGE", source, "first survey image used"},
	}
	for _, kv := range sets {
		if err := h.Set(kv.key, kv.val, kv.comment); err != nil {
			return nil, err
		}
	}
	if s.cfg.RunID != "" {
		if err := h.Set("RUNID", s.cfg.RunID, "stampcut run"); err != nil {
			return nil, err
		}
	}

	dx, dy := win.Offset()
	if err := w.Shift(float64(dx), float64(dy)).Apply(h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Stitcher) put(ctx context.Context, name string, h *fits.Header, canvas []float32) error {
	data, err := fits.EncodeBytes(h, canvas, s.cfg.Side, s.cfg.Side)
	if err != nil {
		return err
	}
	if s.cfg.Compression != compress.None {
		if data, err = compress.Encode(s.cfg.Compression, data); err != nil {
			return err
		}
	}
	return s.out.Put(ctx, name, data)
}
