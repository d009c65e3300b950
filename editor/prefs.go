package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// prefs are the editor's own settings, kept next to the binary's working
// directory.
type prefs struct {
	Port           string        `yaml:"port"`
	Baud           int           `yaml:"baud"`
	Window         time.Duration `yaml:"window"`
	AverageSamples int           `yaml:"average_samples"` // 0 disables averaging
	Threshold      float64       `yaml:"threshold"`       // move detection, travels per second
}

func defaultPrefs() *prefs {
	return &prefs{
		Baud:      115200,
		Window:    10 * time.Second,
		Threshold: 0.25,
	}
}

// loadPrefs reads filename. A missing file yields the defaults.
func loadPrefs(filename string) (*prefs, error) {
	p := defaultPrefs()
	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse preferences: %w", err)
	}
	if p.Window <= 0 {
		p.Window = defaultPrefs().Window
	}
	return p, nil
}

func (p *prefs) save(filename string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}
