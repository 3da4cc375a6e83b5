// Package config handles meshfix configuration loading and management.
package config

// Config holds all repair settings.
type Config struct {
	Repair  RepairConfig  `yaml:"repair"`
	Holes   HolesConfig   `yaml:"holes"`
	Import  ImportConfig  `yaml:"import"`
	Labels  LabelsConfig  `yaml:"labels"`
	Logging LoggingConfig `yaml:"logging"`
}

// RepairConfig holds topology and cleanup settings.
type RepairConfig struct {
	MaxRetry            int  `yaml:"max_retry"`
	Workers             int  `yaml:"workers"` // 0 means GOMAXPROCS
	FixSelfIntersection bool `yaml:"fix_self_intersection"`
	KeepLargest         bool `yaml:"keep_largest_components"`
	ComponentThreshold  int  `yaml:"component_threshold"`
}

// HolesConfig holds hole filling settings.
type HolesConfig struct {
	Fill        bool    `yaml:"fill"`
	FilterSmall bool    `yaml:"filter_small"`
	MaxEdges    int     `yaml:"max_edges"`
	MaxDiameter float64 `yaml:"max_diameter"`
	Refine      bool    `yaml:"refine"`
	Weighting   string  `yaml:"weighting"` // angle or area
}

// ImportConfig holds mesh import settings.
type ImportConfig struct {
	WeldTolerance float64 `yaml:"weld_tolerance"` // 0 joins exact duplicates only
}

// LabelsConfig holds label normalisation settings. Labels below ResetBelow
// or listed in ResetValues are reset to 0 on load.
type LabelsConfig struct {
	ResetBelow  int   `yaml:"reset_below"`
	ResetValues []int `yaml:"reset_values"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Repair: RepairConfig{
			MaxRetry:           10,
			ComponentThreshold: 100,
		},
		Holes: HolesConfig{
			Fill:        true,
			MaxEdges:    100,
			MaxDiameter: 1,
			Weighting:   "angle",
		},
		Labels: LabelsConfig{
			ResetBelow:  10,
			ResetValues: []int{100},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
