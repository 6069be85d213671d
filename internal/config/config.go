package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/dronetrace/internal/control"
	"github.com/san-kum/dronetrace/internal/physics"
	"github.com/san-kum/dronetrace/internal/trace"
)

const (
	DefaultPhysics      = "dyn"
	DefaultDrone        = "cf2x"
	DefaultController   = "dslpid"
	DefaultOutputFolder = "results"
	DefaultLogLevel     = "info"
	DefaultAltitude     = 0.1
)

type Config struct {
	Physics      string `yaml:"physics"`
	Drone        string `yaml:"drone"`
	Controller   string `yaml:"controller"`
	GUI          bool   `yaml:"gui"`
	RecordVideo  bool   `yaml:"record_video"`
	TraceFile    string `yaml:"trace_file"`
	OutputFolder string `yaml:"output_folder"`
	Colab        bool   `yaml:"colab"`
	Plot         bool   `yaml:"plot"`
	LogLevel     string `yaml:"log_level"`

	Seed       int64         `yaml:"seed"`
	Substeps   int           `yaml:"substeps"`
	InitialXYZ [3]float64    `yaml:"initial_xyz"`
	InitialRPY [3]float64    `yaml:"initial_rpy"`
	Noise      physics.Noise `yaml:"noise"`

	// DroneParams overrides airframe constants by name, such as mass or kf.
	DroneParams map[string]float64 `yaml:"drone_params,omitempty"`

	// Gains replaces the drone model's default controller gains when set.
	Gains *control.Gains `yaml:"gains,omitempty"`

	// Profile shapes synthetic traces: the ones written by generate, and the
	// reference used by compare, tune and ensemble when no trace file is set.
	Profile trace.Profile `yaml:"profile"`
}

func DefaultConfig() *Config {
	return &Config{
		Physics:      DefaultPhysics,
		Drone:        DefaultDrone,
		Controller:   DefaultController,
		OutputFolder: DefaultOutputFolder,
		LogLevel:     DefaultLogLevel,
		Substeps:     1,
		InitialXYZ:   [3]float64{0, 0, DefaultAltitude},
		Profile:      trace.DefaultProfile(),
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks values that do not depend on registered names.
func (c *Config) Validate() error {
	if _, err := physics.ParseMode(c.Physics); err != nil {
		return err
	}
	if c.Substeps < 1 {
		return fmt.Errorf("substeps must be at least 1, got %d", c.Substeps)
	}
	if c.Noise.Pos < 0 || c.Noise.Vel < 0 || c.Noise.RPY < 0 {
		return fmt.Errorf("noise standard deviations must be non-negative")
	}
	if c.OutputFolder == "" {
		return fmt.Errorf("output folder must not be empty")
	}
	return nil
}

// Interactive reports whether the run should hold to wall-clock time and
// draw a live view. Notebook runs never do.
func (c *Config) Interactive() bool {
	return c.GUI && !c.Colab
}

func (c *Config) Clone() *Config {
	out := *c
	if c.DroneParams != nil {
		out.DroneParams = make(map[string]float64, len(c.DroneParams))
		for k, v := range c.DroneParams {
			out.DroneParams[k] = v
		}
	}
	if c.Gains != nil {
		g := *c.Gains
		out.Gains = &g
	}
	return &out
}
