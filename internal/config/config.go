package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/teensylog/internal/fsutil"
	"github.com/banshee-data/teensylog/internal/sampler"
	"github.com/banshee-data/teensylog/internal/serialport"
)

// Default output files, one per pipeline.
const (
	DefaultMillisOutput = "teensy_millis_data.csv"
	DefaultWeightOutput = "teensy_weight_data.csv"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// LoggerConfig is the configuration surface of both logging pipelines. Every
// field is optional; the Get* methods supply defaults for anything unset, so
// partial files are safe.
type LoggerConfig struct {
	// Serial endpoint
	Port        *string `json:"port,omitempty" yaml:"port,omitempty"`
	BaudRate    *int    `json:"baud_rate,omitempty" yaml:"baud_rate,omitempty"`
	DataBits    *int    `json:"data_bits,omitempty" yaml:"data_bits,omitempty"`
	StopBits    *int    `json:"stop_bits,omitempty" yaml:"stop_bits,omitempty"`
	Parity      *string `json:"parity,omitempty" yaml:"parity,omitempty"`
	ReadTimeout *string `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty"` // duration string like "1s"
	ResetOnOpen *bool   `json:"reset_on_open,omitempty" yaml:"reset_on_open,omitempty"`
	ResetPause  *string `json:"reset_pause,omitempty" yaml:"reset_pause,omitempty"`

	// Output
	OutputPath    *string `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	FlushInterval *string `json:"flush_interval,omitempty" yaml:"flush_interval,omitempty"`
	CheckHeader   *bool   `json:"check_header,omitempty" yaml:"check_header,omitempty"`

	// Mirrors (optional)
	SQLitePath   *string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
	MQTTBroker   *string `json:"mqtt_broker,omitempty" yaml:"mqtt_broker,omitempty"`
	MQTTTopic    *string `json:"mqtt_topic,omitempty" yaml:"mqtt_topic,omitempty"`
	MQTTClientID *string `json:"mqtt_client_id,omitempty" yaml:"mqtt_client_id,omitempty"`
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// String, Int and Bool return pointers for populating a LoggerConfig.
func String(v string) *string { return ptrString(v) }
func Int(v int) *int          { return ptrInt(v) }
func Bool(v bool) *bool       { return ptrBool(v) }

// Load reads a LoggerConfig from a .json, .yaml or .yml file.
func Load(fsys fsutil.FileSystem, path string) (*LoggerConfig, error) {
	cleanPath := filepath.Clean(path)

	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &LoggerConfig{}
	switch ext := filepath.Ext(cleanPath); ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *LoggerConfig) Validate() error {
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}

	for name, v := range map[string]*string{
		"read_timeout":   c.ReadTimeout,
		"reset_pause":    c.ResetPause,
		"flush_interval": c.FlushInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}

	if _, err := c.PortOptions().Normalise(); err != nil {
		return err
	}

	if c.MQTTTopic != nil && *c.MQTTTopic != "" && c.GetMQTTBroker() == "" {
		return fmt.Errorf("mqtt_topic is set but mqtt_broker is empty")
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func stringOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

// GetPort returns the serial endpoint path.
func (c *LoggerConfig) GetPort() string {
	return stringOr(c.Port, serialport.DefaultPath)
}

// PortOptions returns the line settings; zero values are filled in by
// serialport.PortOptions.Normalise.
func (c *LoggerConfig) PortOptions() serialport.PortOptions {
	var opts serialport.PortOptions
	if c.BaudRate != nil {
		opts.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		opts.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		opts.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		opts.Parity = *c.Parity
	}
	return opts
}

// GetReadTimeout returns how long a single read may block.
func (c *LoggerConfig) GetReadTimeout() time.Duration {
	return durationOr(c.ReadTimeout, serialport.DefaultReadTimeout)
}

// GetResetOnOpen reports whether the DTR reset handshake runs after opening.
func (c *LoggerConfig) GetResetOnOpen() bool {
	if c.ResetOnOpen == nil {
		return true
	}
	return *c.ResetOnOpen
}

// GetResetPause returns how long DTR is held low.
func (c *LoggerConfig) GetResetPause() time.Duration {
	return durationOr(c.ResetPause, serialport.DefaultResetPause)
}

// Endpoint assembles the serial endpoint description.
func (c *LoggerConfig) Endpoint() serialport.Endpoint {
	return serialport.Endpoint{
		Path:        c.GetPort(),
		Options:     c.PortOptions(),
		ReadTimeout: c.GetReadTimeout(),
		Reset:       c.GetResetOnOpen(),
		ResetPause:  c.GetResetPause(),
	}
}

// GetOutputPath returns the CSV path, or fallback when unset.
func (c *LoggerConfig) GetOutputPath(fallback string) string {
	return stringOr(c.OutputPath, fallback)
}

// GetFlushInterval returns the snapshot period of the weight pipeline.
func (c *LoggerConfig) GetFlushInterval() time.Duration {
	return durationOr(c.FlushInterval, sampler.DefaultFlushInterval)
}

// GetCheckHeader reports whether an existing file's header is compared with
// the expected one before appending.
func (c *LoggerConfig) GetCheckHeader() bool {
	if c.CheckHeader == nil {
		return true
	}
	return *c.CheckHeader
}

// GetSQLitePath returns the SQLite mirror path; empty disables the mirror.
func (c *LoggerConfig) GetSQLitePath() string {
	return stringOr(c.SQLitePath, "")
}

// GetMQTTBroker returns the broker URL; empty disables the MQTT mirror.
func (c *LoggerConfig) GetMQTTBroker() string {
	return stringOr(c.MQTTBroker, "")
}

// GetMQTTTopic returns the publish topic for pipeline.
func (c *LoggerConfig) GetMQTTTopic(pipeline string) string {
	return stringOr(c.MQTTTopic, "teensylog/"+pipeline)
}

// GetMQTTClientID returns the MQTT client id, derived from sessionID when
// unset.
func (c *LoggerConfig) GetMQTTClientID(sessionID string) string {
	return stringOr(c.MQTTClientID, "teensylog-"+sessionID)
}
