package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Gamification holds the site-wide scoring settings. It is passed explicitly
// into the scoring pipeline rather than read as ambient global state so that
// tests stay deterministic.
type Gamification struct {
	SpeedBonusEnabled    bool    `yaml:"speed_bonus_enabled"`
	SpeedBonusPercentage float64 `yaml:"speed_bonus_percentage"` // clamped to [5,25]
	PassingScore         float64 `yaml:"passing_score"`
	ExcellenceScore      float64 `yaml:"excellence_score"`
}

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Catalog struct {
		TTL string `yaml:"ttl"`
	} `yaml:"catalog"`
	Gamification Gamification `yaml:"gamification"`
}

// Load reads YAML config from path and applies defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.Gamification = cfg.Gamification.withDefaults()
	return cfg, nil
}

// withDefaults clamps the bonus percentage into its allowed range and fills
// in the presentation thresholds when unset.
func (g Gamification) withDefaults() Gamification {
	if g.SpeedBonusPercentage < 5 {
		g.SpeedBonusPercentage = 5
	}
	if g.SpeedBonusPercentage > 25 {
		g.SpeedBonusPercentage = 25
	}
	if g.PassingScore == 0 {
		g.PassingScore = 50
	}
	if g.ExcellenceScore == 0 {
		g.ExcellenceScore = 90
	}
	return g
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
