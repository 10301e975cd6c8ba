package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/wnxd/microfi/hops"
	"gopkg.in/yaml.v3"
)

var (
	ErrFormatUnsupported = errors.New("config format unsupported")
	ErrConfigInvalid     = errors.New("config invalid")
)

type Format int

const (
	FORMAT_TOML Format = iota
	FORMAT_YAML
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FORMAT_TOML, nil
	case ".yaml", ".yml":
		return FORMAT_YAML, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrFormatUnsupported, path)
}

type Config struct {
	Planner    PlannerConfig    `toml:"planner" yaml:"planner"`
	FaultSpace FaultSpaceConfig `toml:"faultspace" yaml:"faultspace"`
}

type PlannerConfig struct {
	UseWatchpoints      bool   `toml:"use_watchpoints" yaml:"use_watchpoints"`
	UseWeights          bool   `toml:"use_weights" yaml:"use_weights"`
	UseCheckpoints      bool   `toml:"use_checkpoints" yaml:"use_checkpoints"`
	CheckpointThreshold uint64 `toml:"checkpoint_threshold" yaml:"checkpoint_threshold" validate:"required_if=UseCheckpoints true"`
	CheckpointCosts     uint64 `toml:"checkpoint_costs" yaml:"checkpoint_costs"`
	RollbackThreshold   uint64 `toml:"rollback_threshold" yaml:"rollback_threshold"`
	// MaxSteps caps the number of trace steps read, 0 reads the whole trace.
	MaxSteps uint64 `toml:"max_steps" yaml:"max_steps"`
}

type FaultSpaceConfig struct {
	Arch   string         `toml:"arch" yaml:"arch" validate:"omitempty,oneof=arm arm64"`
	Memory []MemoryConfig `toml:"memory" yaml:"memory" validate:"unique=Name,dive"`
}

type MemoryConfig struct {
	Name string `toml:"name" yaml:"name" validate:"required"`
	Base uint64 `toml:"base" yaml:"base"`
	Size uint64 `toml:"size" yaml:"size" validate:"gt=0"`
}

var validate = validator.New()

func Default() Config {
	def := hops.DefaultConfig()
	return Config{
		Planner: PlannerConfig{
			UseWatchpoints: def.UseWatchpoints,
			UseWeights:     def.UseWeights,
		},
	}
}

// Load reads and validates a TOML or YAML file on top of the defaults.
func Load(path string) (Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Config{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	cfg, err := Decode(f, format)
	if err != nil {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

func Decode(r io.Reader, format Format) (Config, error) {
	cfg := Default()
	switch format {
	case FORMAT_TOML:
		meta, err := toml.NewDecoder(r).Decode(&cfg)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("%w: unknown key %s", ErrConfigInvalid, undecoded[0])
		}
	case FORMAT_YAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && err != io.EOF {
			return Config{}, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
		}
	default:
		return Config{}, ErrFormatUnsupported
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	return c.Planner.Hops().Validate()
}

func (p PlannerConfig) Hops() hops.Config {
	return hops.Config{
		UseWatchpoints:      p.UseWatchpoints,
		UseWeights:          p.UseWeights,
		UseCheckpoints:      p.UseCheckpoints,
		CheckpointThreshold: p.CheckpointThreshold,
		CheckpointCosts:     p.CheckpointCosts,
		RollbackThreshold:   p.RollbackThreshold,
	}
}
