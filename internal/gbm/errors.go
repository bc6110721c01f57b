package gbm

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrEmptyModel is returned when an artifact contains no trees
	ErrEmptyModel = errors.New("model contains no trees")
	// ErrUnsupported is returned for model features this package cannot evaluate
	ErrUnsupported = errors.New("unsupported model feature")
	// ErrMalformed is returned when the artifact cannot be parsed
	ErrMalformed = errors.New("malformed model artifact")
)

// DimensionError reports a feature vector whose length does not match the model
type DimensionError struct {
	Expected int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("feature vector has %d values, model expects %d", e.Got, e.Expected)
}

func malformed(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrMalformed)
}

func unsupported(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrUnsupported)
}
