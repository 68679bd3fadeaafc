package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"ctr-asset-decoder/internal/logging"
	"ctr-asset-decoder/internal/texture"
)

// Config holds paths and output settings.
type Config struct {
	// Paths
	RomFSDir  string `json:"romfs_dir"`
	OutputDir string `json:"output_dir"`

	// Output settings
	TextureFormat string `json:"texture_format"`
	PreviewSize   int    `json:"preview_size"`
	Supersample   int    `json:"supersample"`
	Workers       int    `json:"workers"`
	ExportGLTF    *bool  `json:"export_gltf"`
	BinaryGLTF    *bool  `json:"binary_gltf"`
	LogLevel      string `json:"log_level"`

	// Filled by Resolve.
	Format texture.Format `json:"-"`
	Level  slog.Level     `json:"-"`
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings. Nil
// booleans were not given on the command line.
type Flags struct {
	RomFSDir  string
	OutputDir string
	Format    string
	Preview   int
	Workers   int
	GLTF      *bool
	Verbose   bool
}

// Resolve applies flags, then fills empty fields with defaults and
// validates the enumerations.
func (c *Config) Resolve(flags Flags) error {
	if flags.RomFSDir != "" {
		c.RomFSDir = flags.RomFSDir
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Format != "" {
		c.TextureFormat = flags.Format
	}
	if flags.Preview > 0 {
		c.PreviewSize = flags.Preview
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.GLTF != nil {
		c.ExportGLTF = flags.GLTF
	}
	if flags.Verbose {
		c.LogLevel = "debug"
	}

	if c.RomFSDir == "" {
		c.RomFSDir = detectRomFS()
	}
	cwd, _ := os.Getwd()
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(cwd, "out")
	} else if !filepath.IsAbs(c.OutputDir) {
		c.OutputDir = filepath.Join(cwd, c.OutputDir)
	}

	if c.TextureFormat == "" {
		c.TextureFormat = string(texture.WebP)
	}
	if c.PreviewSize <= 0 {
		c.PreviewSize = 256
	}
	if c.Supersample <= 0 {
		c.Supersample = 2
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.ExportGLTF == nil {
		c.ExportGLTF = ptr(true)
	}
	if c.BinaryGLTF == nil {
		c.BinaryGLTF = ptr(true)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	var err error
	if c.Format, err = texture.ParseFormat(c.TextureFormat); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Level, err = logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// GLTF reports whether models are exported, and as .glb when binary.
func (c *Config) GLTF() (export, binary bool) {
	return c.ExportGLTF != nil && *c.ExportGLTF, c.BinaryGLTF != nil && *c.BinaryGLTF
}

func ptr[T any](v T) *T { return &v }

// detectRomFS looks for an extracted romfs directory next to the working
// directory or the executable.
func detectRomFS() string {
	var bases []string
	if cwd, err := os.Getwd(); err == nil {
		bases = append(bases, cwd, filepath.Dir(cwd))
	}
	if exe, err := os.Executable(); err == nil {
		bases = append(bases, filepath.Dir(exe))
	}
	for _, base := range bases {
		dir := filepath.Join(base, "romfs")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
