// Package formats provides loaders for Wavefront OBJ/MTL meshes, 3D-scanner
// (3dtk) point cloud directories and the compact c3d point format.
package formats

import (
	"fmt"
	"image"
	"slices"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/pointview/pkg/geometry"
)

// ImageDecoder decodes texture files referenced by materials.
type ImageDecoder interface {
	Decode(path string) (*image.RGBA, error)
}

// Loader carries the options and diagnostics of a sequence of load calls.
// A Loader is not safe for concurrent use; use one per goroutine.
type Loader struct {
	// Layout selects the vertex components of meshes built by LoadOBJ.
	// Defaults to geometry.MeshLayout.
	Layout geometry.Layout

	// Pedantic makes the first statement error fatal. Otherwise statement
	// errors are recorded as warnings and parsing continues.
	Pedantic bool

	// Images decodes map_Kd textures. Textures are skipped when nil.
	Images ImageDecoder

	// DisableMmap forces the buffered c3d reader.
	DisableMmap bool

	log      *zap.Logger
	warnings error
}

// NewLoader creates a loader that reports to log. A nil log discards output.
func NewLoader(log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		Layout: slices.Clone(geometry.MeshLayout),
		log:    log,
	}
}

// Warnings returns the errors recorded in lenient mode, oldest first.
func (l *Loader) Warnings() []error {
	return multierr.Errors(l.warnings)
}

func (l *Loader) logger() *zap.Logger {
	if l.log == nil {
		l.log = zap.NewNop()
	}
	return l.log
}

func (l *Loader) layout() geometry.Layout {
	if len(l.Layout) == 0 {
		return geometry.MeshLayout
	}
	return l.Layout
}

// warn logs err and records it as a warning.
func (l *Loader) warn(msg string, err error, fields ...zap.Field) {
	l.warnings = multierr.Append(l.warnings, err)
	l.logger().Warn(msg, append(fields, zap.Error(err))...)
}

// statementError handles a failed statement: in pedantic mode it is returned,
// otherwise it is recorded and nil is returned.
func (l *Loader) statementError(err *LineError) error {
	if l.Pedantic {
		return err
	}
	l.warn("skipping statement", err,
		zap.String("path", err.Path),
		zap.Int("line", err.Line),
		zap.String("statement", err.Statement))
	return nil
}

// longLine reports a line longer than maxLineSize as a statement error.
func (l *Loader) longLine(path string, line int) error {
	return l.statementError(&LineError{
		Path: path,
		Line: line,
		Err:  fmt.Errorf("%w: more than %d bytes", ErrLineTooLong, maxLineSize),
	})
}
