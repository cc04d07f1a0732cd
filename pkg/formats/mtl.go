package formats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/pointview/pkg/geometry"
)

// mtlParser builds one material at a time and pushes it into the table when
// the next newmtl or the end of file is reached.
type mtlParser struct {
	loader    *Loader
	path      string
	dir       string
	materials geometry.MaterialTable
	current   *geometry.Material
}

// LoadMTL parses the MTL file at path into materials.
func (l *Loader) LoadMTL(path string, materials geometry.MaterialTable) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotOpenFile, err)
	}
	defer f.Close()

	return l.ParseMTL(f, path, materials)
}

// ParseMTL parses MTL statements from r. path names the source for
// diagnostics and is the base for relative texture references.
func (l *Loader) ParseMTL(r io.Reader, path string, materials geometry.MaterialTable) error {
	if materials == nil {
		return fmt.Errorf("%w: nil material table", ErrInvalidArgument)
	}

	p := &mtlParser{
		loader:    l,
		path:      path,
		dir:       filepath.Dir(path),
		materials: materials,
		current:   &geometry.Material{},
	}

	scanner := newLineScanner(r)
	for scanner.Scan() {
		if scanner.TooLong() {
			if err := l.longLine(path, scanner.Line()); err != nil {
				return err
			}
			continue
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		if err := p.parseStatement(fields); err != nil {
			lineErr := &LineError{Path: path, Line: scanner.Line(), Statement: fields[0], Err: err}
			if err := l.statementError(lineErr); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		p.finishMaterial()
		return fmt.Errorf("%w: reading %s: %w", ErrCannotOpenFile, path, err)
	}

	p.finishMaterial()
	return nil
}

func (p *mtlParser) parseStatement(fields []string) error {
	args := fields[1:]
	switch fields[0] {
	case "newmtl":
		p.finishMaterial()
		p.current = &geometry.Material{Name: strings.Join(args, " ")}
	case "Kd":
		var rgb [3]float32
		if err := parseFloats(rgb[:], args); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedColor, err)
		}
		if p.current.Color == nil {
			p.current.Color = &mgl32.Vec4{rgb[0], rgb[1], rgb[2], 1}
		} else {
			p.current.Color[0], p.current.Color[1], p.current.Color[2] = rgb[0], rgb[1], rgb[2]
		}
	case "d":
		var alpha [1]float32
		if err := parseFloats(alpha[:], args); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedColorAlpha, err)
		}
		if p.current.Color == nil {
			p.current.Color = &mgl32.Vec4{0, 0, 0, alpha[0]}
		} else {
			p.current.Color[3] = alpha[0]
		}
	case "map_Kd":
		return p.loadTexture(strings.Join(args, " "))
	}
	return nil
}

func (p *mtlParser) loadTexture(ref string) error {
	if ref == "" {
		return fmt.Errorf("%w: map_Kd without path", ErrCannotOpenTexture)
	}
	if p.loader.Images == nil {
		p.loader.logger().Debug("no image decoder, skipping texture",
			zap.String("path", p.path),
			zap.String("texture", ref))
		return nil
	}

	img, err := p.loader.Images.Decode(resolvePath(p.dir, ref))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotOpenTexture, err)
	}
	p.current.Texture = img
	return nil
}

// finishMaterial pushes the material being built. Statements seen before the
// first newmtl build a nameless material, which is dropped here.
func (p *mtlParser) finishMaterial() {
	if p.current == nil || p.current.Name == "" {
		return
	}
	p.materials[p.current.Name] = p.current
	p.current = nil
}
