package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

var (
	flagConfig   = flag.String("config", "", "Path to config file (.yaml or .toml)")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagPedantic = flag.Bool("pedantic", false, "Abort a file on its first malformed statement")
	flagNoMmap   = flag.Bool("no-mmap", false, "Read c3d files without memory mapping")
	flagWorkers  = flag.Int("workers", 0, "Number of files loaded in parallel")
	flagLogFile  = flag.String("log-file", "", "Write logs to this file")
	flagSize     vec3Value
)

func init() {
	flag.Var(&flagSize, "size", "Scene box size as x,y,z")
}

// vec3Value is a flag.Value holding three comma separated floats.
type vec3Value struct {
	v   [3]float32
	set bool
}

func (f *vec3Value) String() string {
	if f == nil || !f.set {
		return ""
	}
	return fmt.Sprintf("%g,%g,%g", f.v[0], f.v[1], f.v[2])
}

func (f *vec3Value) Set(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return fmt.Errorf("expected x,y,z, got %q", s)
	}
	var v [3]float32
	for i, part := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return fmt.Errorf("axis %d: %w", i, err)
		}
		v[i] = float32(n)
	}
	f.v, f.set = v, true
	return nil
}

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagPedantic {
		cfg.Loading.Pedantic = true
	}
	if *flagNoMmap {
		cfg.Loading.Mmap = false
	}
	if *flagWorkers > 0 {
		cfg.Loading.Workers = *flagWorkers
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if flagSize.set {
		cfg.Scene.Size = flagSize.v
	}
}
