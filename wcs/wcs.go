// Package wcs converts between image pixels and equatorial sky coordinates
// for the celestial projections found in survey tiles: gnomonic (TAN),
// orthographic (SIN) and a linear fallback for headers without a projection
// code.
//
// Pixel coordinates follow the FITS convention: the center of the first
// pixel is (1,1). Sky coordinates are in degrees with right ascension
// normalized to [0,360).
package wcs

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/stampcut/fits"
)

var (
	// ErrUnsupportedProjection is returned for projection codes other than
	// TAN, SIN, CAR and linear.
	ErrUnsupportedProjection = errors.New("wcs: unsupported projection")
	// ErrOutsideProjection is returned when a sky position has no image
	// under the projection, e.g. the far hemisphere of a TAN tile.
	ErrOutsideProjection = errors.New("wcs: position outside projection")
	// ErrSingularMatrix is returned when the linear transform cannot be
	// inverted.
	ErrSingularMatrix = errors.New("wcs: singular CD matrix")
	// ErrMissingReference is returned for headers without CRPIX/CRVAL.
	ErrMissingReference = errors.New("wcs: missing reference keywords")
)

// Projection identifies the spherical projection.
type Projection int

const (
	Linear Projection = iota
	TAN
	SIN
)

func (p Projection) String() string {
	switch p {
	case TAN:
		return "TAN"
	case SIN:
		return "SIN"
	default:
		return "CAR"
	}
}

const r2d = 180 / math.Pi

// WCS is a celestial world coordinate system.
type WCS struct {
	Proj   Projection
	Crpix  [2]float64
	Crval  [2]float64
	CD     [2][2]float64
	Ctype  [2]string
	inv    [2][2]float64
	lonPol float64
}

// New builds a WCS from its parts and validates the CD matrix.
func New(proj Projection, crpix, crval [2]float64, cd [2][2]float64) (*WCS, error) {
	w := &WCS{Proj: proj, Crpix: crpix, Crval: crval, CD: cd}
	w.Ctype = ctypes(proj)
	if err := w.init(); err != nil {
		return nil, err
	}
	return w, nil
}

func ctypes(p Projection) [2]string {
	return [2]string{"RA---" + p.String(), "DEC--" + p.String()}
}

func (w *WCS) init() error {
	det := w.CD[0][0]*w.CD[1][1] - w.CD[0][1]*w.CD[1][0]
	if det == 0 || math.IsNaN(det) {
		return ErrSingularMatrix
	}
	w.inv = [2][2]float64{
		{w.CD[1][1] / det, -w.CD[0][1] / det},
		{-w.CD[1][0] / det, w.CD[0][0] / det},
	}
	w.lonPol = 180
	if w.Crval[1] >= 90 {
		w.lonPol = 0
	}
	return nil
}

// FromHeader reads the WCS of the primary image. The linear part comes from
// CDi_j when present, otherwise from CDELTi combined with PCi_j or CROTA2.
func FromHeader(h *fits.Header) (*WCS, error) {
	w := &WCS{}

	c1, _ := h.String("CTYPE1")
	c2, _ := h.String("CTYPE2")
	w.Ctype = [2]string{c1, c2}
	proj, err := projectionOf(c1)
	if err != nil {
		return nil, err
	}
	w.Proj = proj

	var ok [4]bool
	w.Crpix[0], ok[0] = h.Float("CRPIX1")
	w.Crpix[1], ok[1] = h.Float("CRPIX2")
	w.Crval[0], ok[2] = h.Float("CRVAL1")
	w.Crval[1], ok[3] = h.Float("CRVAL2")
	for _, o := range ok {
		if !o {
			return nil, ErrMissingReference
		}
	}

	w.CD = linearPart(h)
	if err := w.init(); err != nil {
		return nil, err
	}
	return w, nil
}

func projectionOf(ctype string) (Projection, error) {
	if len(ctype) < 8 || !strings.Contains(ctype, "-") {
		return Linear, nil
	}
	switch code := strings.ToUpper(ctype[5:8]); code {
	case "TAN":
		return TAN, nil
	case "SIN":
		return SIN, nil
	case "CAR":
		return Linear, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedProjection, code)
	}
}

func linearPart(h *fits.Header) [2][2]float64 {
	keys := [2][2]string{{"1_1", "1_2"}, {"2_1", "2_2"}}

	hasCD := false
	var cd [2][2]float64
	for i := range 2 {
		for j := range 2 {
			if v, ok := h.Float("CD" + keys[i][j]); ok {
				cd[i][j] = v
				hasCD = true
			}
		}
	}
	if hasCD {
		return cd
	}

	cdelt := [2]float64{1, 1}
	if v, ok := h.Float("CDELT1"); ok {
		cdelt[0] = v
	}
	if v, ok := h.Float("CDELT2"); ok {
		cdelt[1] = v
	}

	pc := [2][2]float64{{1, 0}, {0, 1}}
	hasPC := false
	for i := range 2 {
		for j := range 2 {
			if v, ok := h.Float("PC" + keys[i][j]); ok {
				pc[i][j] = v
				hasPC = true
			}
		}
	}
	if !hasPC {
		if rot, ok := h.Float("CROTA2"); ok && rot != 0 {
			s, c := math.Sincos(rot / r2d)
			pc = [2][2]float64{
				{c, -s * cdelt[1] / cdelt[0]},
				{s * cdelt[0] / cdelt[1], c},
			}
		}
	}

	for i := range 2 {
		for j := range 2 {
			cd[i][j] = cdelt[i] * pc[i][j]
		}
	}
	return cd
}

// PixelToSky converts 1-based pixel coordinates to (ra, dec) in degrees.
func (w *WCS) PixelToSky(x, y float64) (ra, dec float64, err error) {
	dx, dy := x-w.Crpix[0], y-w.Crpix[1]
	xi := w.CD[0][0]*dx + w.CD[0][1]*dy
	eta := w.CD[1][0]*dx + w.CD[1][1]*dy

	if w.Proj == Linear {
		return normalizeRA(w.Crval[0] + xi), w.Crval[1] + eta, nil
	}

	r := math.Hypot(xi, eta)
	phi := math.Atan2(xi, -eta)
	var theta float64
	switch w.Proj {
	case TAN:
		theta = math.Atan2(r2d, r)
	case SIN:
		rr := r / r2d
		if rr > 1 {
			return 0, 0, ErrOutsideProjection
		}
		theta = math.Acos(rr)
	}

	ra, dec = w.nativeToCelestial(phi, theta)
	return ra, dec, nil
}

// SkyToPixel converts (ra, dec) in degrees to 1-based pixel coordinates.
func (w *WCS) SkyToPixel(ra, dec float64) (x, y float64, err error) {
	var xi, eta float64

	if w.Proj == Linear {
		dra := ra - w.Crval[0]
		if dra > 180 {
			dra -= 360
		} else if dra < -180 {
			dra += 360
		}
		xi, eta = dra, dec-w.Crval[1]
	} else {
		phi, theta := w.celestialToNative(ra, dec)

		var r float64
		switch w.Proj {
		case TAN:
			if theta <= 0 {
				return 0, 0, ErrOutsideProjection
			}
			r = r2d * math.Cos(theta) / math.Sin(theta)
		case SIN:
			if theta < 0 {
				return 0, 0, ErrOutsideProjection
			}
			r = r2d * math.Cos(theta)
		}
		xi = r * math.Sin(phi)
		eta = -r * math.Cos(phi)
	}

	dx := w.inv[0][0]*xi + w.inv[0][1]*eta
	dy := w.inv[1][0]*xi + w.inv[1][1]*eta
	return dx + w.Crpix[0], dy + w.Crpix[1], nil
}

// nativeToCelestial rotates native spherical (phi, theta), in radians, to
// (ra, dec) in degrees.
func (w *WCS) nativeToCelestial(phi, theta float64) (float64, float64) {
	a0, d0 := w.Crval[0]/r2d, w.Crval[1]/r2d
	dphi := phi - w.lonPol/r2d

	sinT, cosT := math.Sincos(theta)
	sinD0, cosD0 := math.Sincos(d0)
	sinP, cosP := math.Sincos(dphi)

	sinD := sinT*sinD0 + cosT*cosD0*cosP
	dec := math.Asin(clamp(sinD))
	ra := a0 + math.Atan2(-cosT*sinP, sinT*cosD0-cosT*sinD0*cosP)
	return normalizeRA(ra * r2d), dec * r2d
}

func (w *WCS) celestialToNative(ra, dec float64) (phi, theta float64) {
	a0, d0 := w.Crval[0]/r2d, w.Crval[1]/r2d
	a, d := ra/r2d, dec/r2d

	sinD, cosD := math.Sincos(d)
	sinD0, cosD0 := math.Sincos(d0)
	sinA, cosA := math.Sincos(a - a0)

	phi = w.lonPol/r2d + math.Atan2(-cosD*sinA, sinD*cosD0-cosD*sinD0*cosA)
	theta = math.Asin(clamp(sinD*sinD0 + cosD*cosD0*cosA))
	return phi, theta
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func normalizeRA(ra float64) float64 {
	ra = math.Mod(ra, 360)
	if ra < 0 {
		ra += 360
	}
	if ra >= 360 {
		ra = 0
	}
	return ra
}

// Shift returns a copy whose pixel grid starts at source pixel
// (1+dx, 1+dy): the sky position of pixel (x, y) in the copy equals that of
// (x+dx, y+dy) in w.
func (w *WCS) Shift(dx, dy float64) *WCS {
	c := *w
	c.Crpix[0] -= dx
	c.Crpix[1] -= dy
	return &c
}

// PixelScale returns the geometric mean pixel size in degrees.
func (w *WCS) PixelScale() float64 {
	return math.Sqrt(math.Abs(w.CD[0][0]*w.CD[1][1] - w.CD[0][1]*w.CD[1][0]))
}

// Apply writes the WCS keywords to h using the CD convention.
func (w *WCS) Apply(h *fits.Header) error {
	ct := w.Ctype
	if ct[0] == "" && ct[1] == "" {
		ct = ctypes(w.Proj)
	}
	sets := []struct {
		key string
		val any
	}{
		{"CTYPE1", ct[0]},
		{"CTYPE2", ct[1]},
		{"CRPIX1", w.Crpix[0]},
		{"CRPIX2", w.Crpix[1]},
		{"CRVAL1", w.Crval[0]},
		{"CRVAL2", w.Crval[1]},
		{"CD1_1", w.CD[0][0]},
		{"CD1_2", w.CD[0][1]},
		{"CD2_1", w.CD[1][0]},
		{"CD2_2", w.CD[1][1]},
	}
	for _, s := range sets {
		if err := h.Set(s.key, s.val, ""); err != nil {
			return err
		}
	}
	return nil
}
