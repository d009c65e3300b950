package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// simConfig holds the runtime settings of the simulator.
type simConfig struct {
	Profile string `mapstructure:"profile"` // preset name or YAML file

	USB struct {
		Port string `mapstructure:"port"` // empty runs a local monitor
		Baud int    `mapstructure:"baud"`
	} `mapstructure:"usb"`

	TRS struct {
		Port string `mapstructure:"port"`
		Baud int    `mapstructure:"baud"`
	} `mapstructure:"trs"`

	I2C struct {
		Bus string `mapstructure:"bus"` // empty disables the controller role fan-out
	} `mapstructure:"i2c"`

	Storage struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"storage"`

	Log struct {
		File  string `mapstructure:"file"`
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Sim struct {
		Noise    float64       `mapstructure:"noise"`  // ADC codes
		Period   time.Duration `mapstructure:"period"` // one sweep of each fader
		Duration time.Duration `mapstructure:"duration"`
	} `mapstructure:"sim"`
}

// setupViper sets defaults, then reads an optional config file and
// FADERBANK_* environment variables.
func setupViper(v *viper.Viper, configFile string) error {
	v.SetDefault("profile", "16nx")
	v.SetDefault("usb.baud", 115200)
	v.SetDefault("trs.baud", 31250)
	v.SetDefault("storage.path", "faderbank.flash")
	v.SetDefault("log.level", "info")
	v.SetDefault("sim.noise", 2.0)
	v.SetDefault("sim.period", 20*time.Second)

	v.SetEnvPrefix("faderbank")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("faderbank")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "faderbank"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func loadSimConfig(v *viper.Viper) (*simConfig, error) {
	var sc simConfig
	if err := v.Unmarshal(&sc); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &sc, nil
}
