package stampcut

import (
	"errors"
	"fmt"

	"github.com/hupe1980/stampcut/config"
	"github.com/hupe1980/stampcut/pixrange"
	"github.com/hupe1980/stampcut/survey"
)

var (
	// ErrMissingOption is returned when required options are not set.
	ErrMissingOption = config.ErrMissingOption
	// ErrNoImages is returned when the image pattern matches nothing.
	ErrNoImages = survey.ErrNoImages
	// ErrWeightCountMismatch is returned when image and weight lists differ
	// in length.
	ErrWeightCountMismatch = survey.ErrWeightCountMismatch
	// ErrInvalidSide is returned when the stamp side is not a positive odd
	// number.
	ErrInvalidSide = pixrange.ErrEvenSide
	// ErrOutputLocked is returned when another run holds the output lock.
	ErrOutputLocked = errors.New("stampcut: output is locked by another run")
	// ErrColumnOutOfRange is returned when a configured column does not
	// exist in the catalog.
	ErrColumnOutOfRange = errors.New("stampcut: catalog column out of range")
)

// ImageError reports a survey image that could not be indexed.
//
// The original underlying error can be accessed via errors.Unwrap.
type ImageError struct {
	Index int
	Name  string
	cause error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("image %d (%s): %v", e.Index, e.Name, e.cause)
}

func (e *ImageError) Unwrap() error { return e.cause }
