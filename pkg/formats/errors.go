package formats

import (
	"errors"
	"fmt"
)

// Error kinds shared by the loaders.
var (
	ErrCannotOpenFile             = errors.New("cannot open file")
	ErrCannotOpenTexture          = errors.New("cannot open texture")
	ErrMalformedVertex            = errors.New("malformed vertex")
	ErrMalformedTextureCoordinate = errors.New("malformed texture coordinate")
	ErrMalformedNormal            = errors.New("malformed normal")
	ErrMalformedFace              = errors.New("malformed face")
	ErrFaceIndexOutOfRange        = errors.New("face index out of range")
	ErrMalformedColor             = errors.New("malformed color")
	ErrMalformedColorAlpha        = errors.New("malformed color alpha")
	ErrInvalidArgument            = errors.New("invalid argument")
	ErrValueTooLarge              = errors.New("value too large")
	ErrLineTooLong                = errors.New("line too long")

	// ErrUnknownLineBegin is reserved; unrecognized statements are ignored
	// even in pedantic mode.
	ErrUnknownLineBegin = errors.New("unknown line begin")
)

// LineError records which statement of which file failed.
type LineError struct {
	Path      string
	Line      int
	Statement string
	Err       error
}

func (e *LineError) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s:%d: %s: %v", e.Path, e.Line, e.Statement, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
