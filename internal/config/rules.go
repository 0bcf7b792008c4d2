// Package config holds the game rules and server settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Rules are the process-wide game constants, fixed at startup
type Rules struct {
	// MaxEnergy is the energy a new player starts with
	MaxEnergy uint64 `yaml:"max_energy"`
	// StartingGold is the gold a new player starts with
	StartingGold uint64 `yaml:"starting_gold"`
	// MaturationWindow is the delay between planting and harvest, written as a
	// duration string such as "20s". Farm records keep whole seconds, so
	// sub-second parts are dropped. Zero means crops mature immediately.
	MaturationWindow time.Duration `yaml:"maturation_window"`
}

// DefaultRules returns the standard game rules
func DefaultRules() Rules {
	return Rules{
		MaxEnergy:        10,
		StartingGold:     5,
		MaturationWindow: 20 * time.Second,
	}
}

// MaturationSeconds returns the maturation window in whole seconds
func (r Rules) MaturationSeconds() int64 {
	return int64(r.MaturationWindow / time.Second)
}

// Validate checks the rules are usable
func (r Rules) Validate() error {
	if r.MaturationWindow < 0 {
		return errors.New("maturation_window must not be negative")
	}
	if r.MaturationWindow > 0 && r.MaturationWindow < time.Second {
		return fmt.Errorf("maturation_window %s is under one second; use a duration such as \"20s\"", r.MaturationWindow)
	}
	return nil
}

// LoadRules reads a YAML rules file. Keys missing from the file keep their defaults.
func LoadRules(path string) (Rules, error) {
	r := DefaultRules()
	raw, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("rules file %s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return r, fmt.Errorf("rules file %s: %w", path, err)
	}
	return r, nil
}
