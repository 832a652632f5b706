// Package config holds the YAML run configuration for the sonde
// converter daemon.
package config

import "time"

type Config struct {
	// Casts to convert on startup. Each entry names the raw telemetry
	// file and its instrument configuration.
	Casts []Cast `yaml:"casts"`

	// ErrorPolicy is the scan-length policy applied while decoding:
	// "raise" or "ignore".
	ErrorPolicy string `yaml:"error_policy"`

	// SampleInterval is the scan period in seconds. Zero means the
	// standard 24 Hz rate.
	SampleInterval float64 `yaml:"sample_interval"`

	DatabasePath string `yaml:"database_path"`

	Server struct {
		Port            int           `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	InfluxDB struct {
		Host         string `yaml:"host"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

type Cast struct {
	Name       string `yaml:"name"`
	HexFile    string `yaml:"hex_file"`
	ConfigFile string `yaml:"config_file"`

	// BottleFile is the optional bottle-closure log recorded alongside
	// the cast.
	BottleFile string `yaml:"bottle_file,omitempty"`
}
