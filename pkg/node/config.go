// Package node brings up a PLC node: bus attachment, I/O layout, scan
// scheduler, remote I/O tasks and the MQTT side.
package node

import (
	"flag"
	"os"
)

// Config provides the options to start a node.
type Config struct {
	// LayoutFile is the I/O layout, see package config.
	LayoutFile string
	// Bus selects the CAN attachment: loop, socketcan:<if> or a tunnel
	// URL (tcp://, ws://, serial://, mqtt://).
	Bus string
	// MQTTBrokerURL enables status topics and Sparkplug, e.g.
	// mqtt://host:1883/
	MQTTBrokerURL string
	// StatusRoot is the topic prefix of plc/status, plc/pause and plc/reset.
	StatusRoot string
	// Program is a built-in program name, empty for an I/O-only node.
	Program string
	// AutoStart runs the program without waiting for a run command.
	AutoStart bool
	// EdgeID overrides the machine derived Sparkplug edge node ID.
	EdgeID string
}

var defaultConfig = Config{
	Bus:        "loop",
	StatusRoot: "plc/",
}

func init() {
	if val := os.Getenv("PLC_LAYOUT"); val != "" {
		defaultConfig.LayoutFile = val
	}
	if val := os.Getenv("PLC_CAN"); val != "" {
		defaultConfig.Bus = val
	}
	if val := os.Getenv("PLC_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.LayoutFile, "layout", defaultConfig.LayoutFile, "I/O layout file (yaml, json or toml)")
	flag.StringVar(&defaultConfig.Bus, "bus", defaultConfig.Bus, "CAN bus: loop, socketcan:<if> or tunnel URL")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL, empty to disable")
	flag.StringVar(&defaultConfig.StatusRoot, "status-root", defaultConfig.StatusRoot, "Topic prefix of PLC status")
	flag.StringVar(&defaultConfig.Program, "program", defaultConfig.Program, "Built-in program, empty for I/O only")
	flag.BoolVar(&defaultConfig.AutoStart, "autostart", defaultConfig.AutoStart, "Run the program right after init")
	flag.StringVar(&defaultConfig.EdgeID, "edge-id", defaultConfig.EdgeID, "Sparkplug edge node ID")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}
