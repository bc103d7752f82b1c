package lantern

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/soypat/lantern/glbuild"
	"github.com/soypat/lantern/gleffect"
	"github.com/spf13/afero"
)

// Program layouts accepted by [Config.Program].
const (
	// ProgramEffect compiles one linked program per variant using all flags.
	ProgramEffect = "effect"
	// ProgramPipeline compiles separable vertex and pixel programs per
	// stage-masked variant and combines them in a pipeline.
	ProgramPipeline = "pipeline"
)

// Session modes accepted by [Config.Mode].
const (
	ModeBatched = "batched"
	ModePerDraw = "per-draw"
)

// Config holds the persisted settings of a [Context].
type Config struct {
	// ShaderPath is the GLSL source file with one section per stage.
	ShaderPath string `json:"shader_path"`
	// CachePath is the directory compiled variants are stored in.
	CachePath string `json:"cache_path"`
	// Program is ProgramEffect or ProgramPipeline.
	Program string `json:"program"`
	// Mode is ModeBatched or ModePerDraw.
	Mode string `json:"mode"`
	// Precompile compiles every variant when the shader is loaded.
	Precompile bool `json:"precompile"`
	// CompilerFlags is passed to the compiler and is part of the cache checksum.
	CompilerFlags uint32 `json:"compiler_flags"`
	// DefaultFlags is the flag set active before the host changes any flag.
	// Zero is a valid empty set; a file omitting the field keeps the default.
	DefaultFlags glbuild.Flags `json:"default_flags"`
	// PipelineCacheSize bounds how many linked pipelines are kept.
	PipelineCacheSize int `json:"pipeline_cache_size"`
	// ShowDialogs presents errors in a blocking dialog instead of only logging them.
	ShowDialogs bool `json:"show_dialogs"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		ShaderPath:        "shaders/lantern.glsl",
		CachePath:         "shaders/cache",
		Program:           ProgramPipeline,
		Mode:              ModeBatched,
		DefaultFlags:      glbuild.DefaultFlags,
		PipelineCacheSize: 64,
		ShowDialogs:       true,
	}
}

// Validate checks the configuration for values a [Context] cannot work with.
func (cfg Config) Validate() error {
	var errs []error
	if cfg.ShaderPath == "" {
		errs = append(errs, errors.New("empty shader path"))
	}
	if cfg.CachePath == "" {
		errs = append(errs, errors.New("empty cache path"))
	}
	if cfg.Program != ProgramEffect && cfg.Program != ProgramPipeline {
		errs = append(errs, fmt.Errorf("unknown program layout %q", cfg.Program))
	}
	if _, err := cfg.sessionMode(); err != nil {
		errs = append(errs, err)
	}
	if cfg.DefaultFlags&^glbuild.FlagMask != 0 {
		errs = append(errs, fmt.Errorf("default flags %#x outside of legal range", uint32(cfg.DefaultFlags)))
	}
	if cfg.CompilerFlags > 0xff {
		errs = append(errs, fmt.Errorf("compiler flags %#x exceed 0xff", cfg.CompilerFlags))
	}
	if cfg.Program == ProgramPipeline && cfg.PipelineCacheSize < 1 {
		errs = append(errs, errors.New("pipeline cache size must be positive"))
	}
	return errors.Join(errs...)
}

func (cfg Config) sessionMode() (gleffect.Mode, error) {
	switch cfg.Mode {
	case ModeBatched:
		return gleffect.ModeBatched, nil
	case ModePerDraw:
		return gleffect.ModePerDraw, nil
	}
	return 0, fmt.Errorf("unknown session mode %q", cfg.Mode)
}

// LoadConfig reads the configuration at path. A missing file yields
// [DefaultConfig]. Fields absent from the file keep their default values.
// A file that cannot be parsed or fails validation is an error.
func LoadConfig(fsys afero.Fs, path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	} else if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	err = json.Unmarshal(b, &cfg)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config: %w", err)
	}
	err = cfg.Validate()
	if err != nil {
		return DefaultConfig(), fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path through a temporary file so that the file is
// never left partially written.
func SaveConfig(fsys afero.Fs, path string, cfg Config) error {
	err := fsys.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	tmp := path + ".tmp"
	err = afero.WriteFile(fsys, tmp, b, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	err = fsys.Rename(tmp, path)
	if err != nil {
		fsys.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
