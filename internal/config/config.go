/*
powernode - CT based power monitoring firmware
Copyright (C) 2024, The Meterwatch Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package config loads the node configuration from a YAML file. A missing
// file is not an error, defaults apply.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const DefaultConfigDir = "/etc/powernode"

type Config struct {
	DeviceID     string `mapstructure:"device-id"`
	CollectorURL string `mapstructure:"collector-url"`

	// Sampling
	Source          string        `mapstructure:"source"` // "adc" or "serial"
	ADCChannel      int           `mapstructure:"adc-channel"`
	SerialDevice    string        `mapstructure:"serial-device"`
	SerialBaud      int           `mapstructure:"serial-baud"`
	SamplesPerCycle int           `mapstructure:"samples-per-cycle"`
	SampleDelay     time.Duration `mapstructure:"sample-delay"`

	// Calibration
	BurdenOhms   float64 `mapstructure:"burden-ohms"`
	TurnsRatio   float64 `mapstructure:"turns-ratio"`
	Calibration  float64 `mapstructure:"calibration"`
	MainsVoltage float64 `mapstructure:"mains-voltage"`

	// Analytics
	WindowSize       int     `mapstructure:"window-size"`
	AnomalyThreshold float64 `mapstructure:"anomaly-threshold"`

	// Delivery
	Interval       time.Duration `mapstructure:"interval"`
	BufferCapacity int           `mapstructure:"buffer-capacity"`
	SendAttempts   int           `mapstructure:"send-attempts"`
	SendBaseDelay  time.Duration `mapstructure:"send-base-delay"`
}

func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("powernode")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetDefault("device-id", "powernode")
	v.SetDefault("collector-url", "http://127.0.0.1:8000/api/power-data")
	v.SetDefault("source", "adc")
	v.SetDefault("adc-channel", 0)
	v.SetDefault("serial-device", "/dev/serial0")
	v.SetDefault("serial-baud", 115200)
	v.SetDefault("samples-per-cycle", 100)
	v.SetDefault("sample-delay", 200*time.Microsecond)
	v.SetDefault("burden-ohms", 33.0)
	v.SetDefault("turns-ratio", 2000.0)
	v.SetDefault("calibration", 1.0)
	v.SetDefault("mains-voltage", 230.0)
	v.SetDefault("window-size", 10)
	v.SetDefault("anomaly-threshold", 0.2)
	v.SetDefault("interval", 5*time.Second)
	v.SetDefault("buffer-capacity", 100)
	v.SetDefault("send-attempts", 3)
	v.SetDefault("send-base-delay", 500*time.Millisecond)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config from %s: %w", dir, err)
		}
	}

	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	switch conf.Source {
	case "adc", "serial":
	default:
		return nil, fmt.Errorf("unknown sample source %q", conf.Source)
	}
	return conf, nil
}
