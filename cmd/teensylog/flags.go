package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/teensylog/internal/config"
	"github.com/banshee-data/teensylog/internal/serialport"
)

// globalFlags are shared by every logging command. They override the config
// file only when set explicitly.
type globalFlags struct {
	configPath  string
	port        string
	baud        int
	readTimeout time.Duration
	noReset     bool
	sqlitePath  string
	mqttBroker  string
	mqttTopic   string
	debug       bool
}

func (g *globalFlags) register(root *cobra.Command) {
	f := root.PersistentFlags()
	f.StringVar(&g.configPath, "config", "", "Path to a JSON or YAML config file")
	f.StringVarP(&g.port, "port", "p", serialport.DefaultPath, "Serial port the Teensy is attached to")
	f.IntVarP(&g.baud, "baud", "b", serialport.DefaultBaudRate, "Baud rate")
	f.DurationVar(&g.readTimeout, "read-timeout", serialport.DefaultReadTimeout, "How long a single read may block")
	f.BoolVar(&g.noReset, "no-reset", false, "Skip the DTR reset after opening the port")
	f.StringVar(&g.sqlitePath, "sqlite", "", "Also record rows into this SQLite database")
	f.StringVar(&g.mqttBroker, "mqtt-broker", "", "Also publish rows to this MQTT broker (e.g. tcp://localhost:1883)")
	f.StringVar(&g.mqttTopic, "mqtt-topic", "", "MQTT topic (default teensylog/<command>)")
	f.BoolVar(&g.debug, "debug", false, "Log every persisted row")
}

// loadConfig merges the config file (if any) with explicitly set flags.
func (a *app) loadConfig(cmd *cobra.Command) (*config.LoggerConfig, error) {
	cfg := &config.LoggerConfig{}
	if a.flags.configPath != "" {
		var err error
		if cfg, err = config.Load(a.fs, a.flags.configPath); err != nil {
			return nil, err
		}
	}

	f := cmd.Flags()
	if f.Changed("port") {
		cfg.Port = config.String(a.flags.port)
	}
	if f.Changed("baud") {
		cfg.BaudRate = config.Int(a.flags.baud)
	}
	if f.Changed("read-timeout") {
		cfg.ReadTimeout = config.String(a.flags.readTimeout.String())
	}
	if f.Changed("no-reset") {
		cfg.ResetOnOpen = config.Bool(!a.flags.noReset)
	}
	if f.Changed("sqlite") {
		cfg.SQLitePath = config.String(a.flags.sqlitePath)
	}
	if f.Changed("mqtt-broker") {
		cfg.MQTTBroker = config.String(a.flags.mqttBroker)
	}
	if f.Changed("mqtt-topic") {
		cfg.MQTTTopic = config.String(a.flags.mqttTopic)
	}
	return cfg, nil
}
