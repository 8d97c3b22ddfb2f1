package config

import "sort"

var Presets = map[string]*Config{
	"reference": DefaultConfig(),
	"ends": func() *Config {
		c := DefaultConfig()
		c.EndsOnly = true
		return c
	}(),
	"gravity": func() *Config {
		c := DefaultConfig()
		c.Gravity = GravityConfig{Y: -9.81}
		return c
	}(),
	"crowded": func() *Config {
		c := DefaultConfig()
		c.Beads = BeadConfig{FirstRadius: 0.2, MinRadius: 0.15, MaxRadius: 0.25}
		return c
	}(),
	"long": func() *Config {
		c := DefaultConfig()
		c.Duration = 60
		c.EndsOnly = true
		return c
	}(),
	"bench": func() *Config {
		c := DefaultConfig()
		c.Groups = 4096
		c.EndsOnly = true
		return c
	}(),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := *p
	return &cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
