package config

import "sort"

// Presets are named run setups layered over DefaultConfig.
var Presets = map[string]func(*Config){
	"hover": func(c *Config) {},
	"plus": func(c *Config) {
		c.Drone = "cf2p"
	},
	"ground": func(c *Config) {
		c.Physics = "gnd"
		c.InitialXYZ = [3]float64{0, 0, 0.02}
		c.Profile.Start.Z = 0.02
		c.Profile.Target.Z = 0.1
	},
	"drag": func(c *Config) {
		c.Physics = "gnd_drag"
		c.Substeps = 4
	},
	"noisy": func(c *Config) {
		c.Physics = "rk4"
		c.Seed = 42
		c.Noise.Pos = 0.002
		c.Noise.Vel = 0.01
		c.Noise.RPY = 0.002
	},
	"sweep": func(c *Config) {
		c.Profile.Kind = "sweep"
		c.Profile.Duration = 10
		c.Profile.Start.Z = 1
		c.InitialXYZ[2] = 1
	},
	"realtime": func(c *Config) {
		c.GUI = true
		c.Plot = true
	},
	"open_loop": func(c *Config) {
		c.Controller = "hover"
	},
}

// GetPreset returns DefaultConfig with the named preset applied, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
