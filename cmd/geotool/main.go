// geotool is a CLI utility for inspecting and converting 3D geometry files:
// Wavefront OBJ meshes, 3dtk scan directories and compact c3d point files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/Faultbox/pointview/internal/assets"
	"github.com/Faultbox/pointview/internal/config"
	"github.com/Faultbox/pointview/internal/logger"
	"github.com/Faultbox/pointview/pkg/formats"
	"github.com/Faultbox/pointview/pkg/geometry"
)

func main() {
	flag.Usage = printUsage
	config.ParseFlags()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "info":
		err = cmdInfo(cfg, args)
	case "analyze":
		err = cmdAnalyze(args)
	case "convert":
		err = cmdConvert(cfg, args)
	case "config":
		err = cmdConfig(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		logger.Sync()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`geotool - 3D geometry inspection and conversion utility

Usage:
  geotool [flags] <command> [options]

Commands:
  info <path>...                  Load paths and show meshes, point clouds and bounds
  analyze <file.3d>...            Show the detected format of 3dtk scan files
  convert [-fit] <out.c3d> <path>... Write all loaded point clouds into one c3d file
  config [file]                   Save the effective settings (default: user config file)

Paths:
  *.obj      Wavefront OBJ mesh (materials via mtllib)
  *.c3d      compact binary point cloud
  <dir>      3dtk scan directory (<name>.3d + <name>.pose pairs)

Flags:
  -config <file>   Config file (.yaml or .toml)
  -debug           Enable debug logging
  -pedantic        Abort a file on its first malformed statement
  -no-mmap         Read c3d files without memory mapping
  -size x,y,z      Scene box used for the fit scale
  -workers <n>     Number of files loaded in parallel
  -log-file <file> Also write logs to a file

Examples:
  geotool info model.obj scans/
  geotool -pedantic info broken.obj
  geotool analyze scans/scan000.3d
  geotool convert merged.c3d scans/ extra.c3d
  geotool -workers 8 -no-mmap config`)
}

// expandPaths resolves a leading ~ in every path.
func expandPaths(paths []string) ([]string, error) {
	out := make([]string, len(paths))
	for i, p := range paths {
		expanded, err := homedir.Expand(p)
		if err != nil {
			return nil, fmt.Errorf("expanding %s: %w", p, err)
		}
		out[i] = expanded
	}
	return out, nil
}

// loadScene loads paths into a new manager.
func loadScene(cfg *config.Config, paths []string) (*assets.Manager, error) {
	paths, err := expandPaths(paths)
	if err != nil {
		return nil, err
	}

	m := assets.NewManager(cfg.Loading, logger.Named("assets"))
	if err := m.LoadAll(context.Background(), paths); err != nil {
		return m, err
	}
	for _, w := range m.Warnings() {
		logger.Debug("warning", zap.Error(w))
	}
	return m, nil
}

func cmdInfo(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: geotool info <path>...")
	}

	m, err := loadScene(cfg, args)
	if err != nil {
		return err
	}

	meshes := m.Meshes()
	for i := range meshes {
		mesh := &meshes[i]
		material := mesh.MaterialName
		if material == "" {
			material = "(none)"
		} else if mesh.Material() == nil {
			material += " (missing)"
		}
		fmt.Printf("Mesh %-4d %8d vertices %8d triangles  layout %-24s material %s\n",
			i, len(mesh.Vertices), mesh.Triangles(), mesh.Layout, material)
	}

	clouds := m.PointClouds()
	for i := range clouds {
		fmt.Printf("Cloud %-3d %8d points  layout %s\n", i, len(clouds[i].Points), clouds[i].Layout)
	}

	materials := m.Materials()
	if len(materials) > 0 {
		fmt.Println()
		fmt.Println("Materials:")
		for _, name := range materials.Names() {
			fmt.Printf("  %-20s %s\n", name, describeMaterial(materials[name]))
		}
	}

	stats := m.Stats()
	box := m.Bounds()
	outer := mgl32.Vec3(cfg.Scene.Size)

	fmt.Println()
	fmt.Printf("Meshes:    %d (%d vertices, %d triangles)\n", stats.Meshes, stats.Vertices, stats.Triangles)
	fmt.Printf("Clouds:    %d (%d points)\n", stats.Clouds, stats.Points)
	fmt.Printf("Materials: %d\n", stats.Materials)
	fmt.Printf("Warnings:  %d\n", stats.Warnings)
	if box.IsEmpty() {
		fmt.Println("Bounds:    (empty)")
	} else {
		fmt.Printf("Bounds:    %s\n", formatBox(box))
		fmt.Printf("Size:      %s\n", formatVec(box.Size()))
	}
	fmt.Printf("Fit scale: %g (box %s)\n", m.FitScale(outer), formatVec(outer))
	return nil
}

func describeMaterial(mat *geometry.Material) string {
	var parts []string
	if mat.Color != nil {
		c := *mat.Color
		parts = append(parts, fmt.Sprintf("color %.3g %.3g %.3g alpha %.3g", c[0], c[1], c[2], c[3]))
	}
	if mat.Texture != nil {
		b := mat.Texture.Bounds()
		parts = append(parts, fmt.Sprintf("texture %dx%d", b.Dx(), b.Dy()))
	}
	if len(parts) == 0 {
		return "(empty)"
	}
	return strings.Join(parts, ", ")
}

func formatVec(v mgl32.Vec3) string {
	return fmt.Sprintf("%g %g %g", v[0], v[1], v[2])
}

func formatBox(b geometry.AABB) string {
	return fmt.Sprintf("[%s] - [%s]", formatVec(b.Min), formatVec(b.Max))
}

func cmdAnalyze(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: geotool analyze <file.3d>...")
	}
	paths, err := expandPaths(args)
	if err != nil {
		return err
	}

	failed := 0
	for _, path := range paths {
		format, err := formats.Analyze3DTK(path)
		if err != nil {
			fmt.Printf("%s: %v\n", path, err)
			failed++
			continue
		}
		status := "supported"
		if !format.Supported() {
			status = "unsupported"
		}
		fmt.Printf("%s: %s (%s)\n", path, format, status)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be analyzed", failed, len(paths))
	}
	return nil
}

func cmdConvert(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	fit := fs.Bool("fit", false, "Scale points into the configured scene box")
	fs.Parse(args)

	if fs.NArg() < 2 {
		return fmt.Errorf("usage: geotool convert [-fit] <out.c3d> <path>...")
	}

	out, err := homedir.Expand(fs.Arg(0))
	if err != nil {
		return err
	}

	m, err := loadScene(cfg, fs.Args()[1:])
	if err != nil {
		return err
	}

	var points []geometry.Vertex
	for _, cloud := range m.PointClouds() {
		points = append(points, cloud.Points...)
	}
	if len(points) == 0 {
		return fmt.Errorf("no point clouds loaded")
	}

	if *fit {
		transform := m.ModelMatrix(mgl32.Vec3(cfg.Scene.Size))
		for i := range points {
			points[i].Position = transform.Mul4x1(points[i].Position.Vec4(1)).Vec3()
		}
	}

	if err := formats.WriteC3DFile(out, points); err != nil {
		return err
	}

	logger.Info("wrote c3d", zap.String("path", out), zap.Int("points", len(points)))
	fmt.Printf("Wrote %d points to %s\n", len(points), out)
	return nil
}

func cmdConfig(cfg *config.Config, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: geotool config [file]")
	}

	path := config.UserConfigFile()
	if len(args) == 1 {
		expanded, err := homedir.Expand(args[0])
		if err != nil {
			return err
		}
		path = expanded
	}

	var err error
	if len(args) == 0 {
		err = cfg.Save()
	} else {
		err = cfg.SaveTo(path)
	}
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("Saved config to %s\n", path)
	return nil
}
