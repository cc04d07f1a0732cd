package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test scene defaults
	if cfg.Scene.Size != [3]float32{100, 100, 100} {
		t.Errorf("expected scene size 100x100x100, got %v", cfg.Scene.Size)
	}

	// Test loading defaults
	if cfg.Loading.Pedantic {
		t.Error("expected pedantic to be false by default")
	}
	if !cfg.Loading.Mmap {
		t.Error("expected mmap to be true by default")
	}
	if !cfg.Loading.FlipTextures {
		t.Error("expected flip_textures to be true by default")
	}
	if cfg.Loading.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Loading.Workers)
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Scene.Size[1] = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidSceneSize) {
		t.Errorf("expected ErrInvalidSceneSize, got %v", err)
	}

	cfg = Default()
	cfg.Loading.Workers = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidWorkers) {
		t.Errorf("expected ErrInvalidWorkers, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
scene:
  size: [10, 20, 30]

loading:
  pedantic: true
  mmap: false
  flip_textures: false
  workers: 8

logging:
  level: "debug"
  log_file: "viewer.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Load config
	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Verify values were loaded
	if cfg.Scene.Size != [3]float32{10, 20, 30} {
		t.Errorf("expected size 10,20,30, got %v", cfg.Scene.Size)
	}
	if !cfg.Loading.Pedantic {
		t.Error("expected pedantic to be true")
	}
	if cfg.Loading.Mmap {
		t.Error("expected mmap to be false")
	}
	if cfg.Loading.FlipTextures {
		t.Error("expected flip_textures to be false")
	}
	if cfg.Loading.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Loading.Workers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "viewer.log" {
		t.Errorf("expected log file 'viewer.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	tomlContent := `
[scene]
size = [1.5, 2.5, 3.5]

[loading]
workers = 2
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Scene.Size != [3]float32{1.5, 2.5, 3.5} {
		t.Errorf("expected size 1.5,2.5,3.5, got %v", cfg.Scene.Size)
	}
	if cfg.Loading.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.Loading.Workers)
	}
	// Untouched keys keep their defaults
	if !cfg.Loading.Mmap {
		t.Error("expected mmap default to survive partial TOML")
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	// Create temporary config file with invalid YAML
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
loading:
  workers: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Try to load - should error
	cfg := Default()
	err := loadFromFile(cfg, configPath)
	if err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Scene.Size = [3]float32{5, 6, 7}
	cfg.Loading.Workers = 3

	for _, name := range []string{"out.yaml", "out.toml"} {
		path := filepath.Join(tmpDir, "nested", name)
		if err := cfg.SaveTo(path); err != nil {
			t.Fatalf("SaveTo(%s) failed: %v", name, err)
		}

		loaded := Default()
		if err := loadFromFile(loaded, path); err != nil {
			t.Fatalf("reloading %s failed: %v", name, err)
		}
		if *loaded != *cfg {
			t.Errorf("%s: expected %+v, got %+v", name, *cfg, *loaded)
		}
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Just verify it returns a non-empty path
	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}

	// Verify path is absolute
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	// Keep the user's real config out of the search
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	homedir.Reset()
	t.Cleanup(homedir.Reset)

	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	// No config file exists - should return empty
	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	// Create pointview.toml in current directory
	if err := os.WriteFile(filepath.Join(tmpDir, "pointview.toml"), []byte("[loading]\nworkers = 2\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	// Should find it now
	path = findConfigFile()
	if path != "./pointview.toml" {
		t.Errorf("expected ./pointview.toml, got %q", path)
	}
}

func TestSaveUserConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	homedir.Reset()
	t.Cleanup(homedir.Reset)
	t.Chdir(t.TempDir())

	cfg := Default()
	cfg.Loading.Pedantic = true
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	path := findConfigFile()
	if path != UserConfigFile() {
		t.Fatalf("expected %s, got %q", UserConfigFile(), path)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reloading failed: %v", err)
	}
	if !loaded.Loading.Pedantic {
		t.Error("expected saved pedantic setting to be loaded")
	}
}

func TestVec3Value(t *testing.T) {
	var v vec3Value
	if err := v.Set("1, 2.5,3"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v.v != [3]float32{1, 2.5, 3} {
		t.Errorf("expected 1,2.5,3, got %v", v.v)
	}
	if v.String() != "1,2.5,3" {
		t.Errorf("unexpected String() %q", v.String())
	}

	for _, bad := range []string{"1,2", "1,2,x", ""} {
		if err := (&vec3Value{}).Set(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*Config)
		teardown func()
	}{
		{
			name: "debug flag",
			setup: func() {
				*flagDebug = true
			},
			verify: func(cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() {
				*flagDebug = false
			},
		},
		{
			name: "pedantic and no-mmap flags",
			setup: func() {
				*flagPedantic = true
				*flagNoMmap = true
			},
			verify: func(cfg *Config) {
				if !cfg.Loading.Pedantic {
					t.Error("expected pedantic with pedantic flag")
				}
				if cfg.Loading.Mmap {
					t.Error("expected mmap disabled with no-mmap flag")
				}
			},
			teardown: func() {
				*flagPedantic = false
				*flagNoMmap = false
			},
		},
		{
			name: "workers and log file flags",
			setup: func() {
				*flagWorkers = 16
				*flagLogFile = "out.log"
			},
			verify: func(cfg *Config) {
				if cfg.Loading.Workers != 16 {
					t.Errorf("expected 16 workers, got %d", cfg.Loading.Workers)
				}
				if cfg.Logging.LogFile != "out.log" {
					t.Errorf("expected log file out.log, got %s", cfg.Logging.LogFile)
				}
			},
			teardown: func() {
				*flagWorkers = 0
				*flagLogFile = ""
			},
		},
		{
			name: "size flag",
			setup: func() {
				flagSize.Set("2,4,8")
			},
			verify: func(cfg *Config) {
				if cfg.Scene.Size != [3]float32{2, 4, 8} {
					t.Errorf("expected size 2,4,8, got %v", cfg.Scene.Size)
				}
			},
			teardown: func() {
				flagSize = vec3Value{}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			tt.setup()
			defer tt.teardown()

			// Apply flags to default config
			cfg := Default()
			applyFlags(cfg)

			// Verify
			tt.verify(cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
loading:
  workers: 6
  pedantic: true
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Set flag to override config file
	*flagConfig = configPath
	*flagWorkers = 12
	defer func() {
		*flagConfig = ""
		*flagWorkers = 0
	}()

	// Load config
	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Workers should be from flag (12), not file (6)
	if cfg.Loading.Workers != 12 {
		t.Errorf("expected 12 workers from flag, got %d", cfg.Loading.Workers)
	}

	// Pedantic should be from file since no flag override
	if !cfg.Loading.Pedantic {
		t.Error("expected pedantic from file")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("loading:\n  workers: -1\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	defer func() { *flagConfig = "" }()

	if _, err := Load(); !errors.Is(err, ErrInvalidWorkers) {
		t.Errorf("expected ErrInvalidWorkers, got %v", err)
	}
}
