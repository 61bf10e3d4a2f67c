// Package config loads the static I/O layout of a node.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/robotalks/plc.go/pkg/ioblock"
	"github.com/robotalks/plc.go/pkg/ioblock/gpio"
	"github.com/robotalks/plc.go/pkg/remoteio"
	"github.com/robotalks/plc.go/pkg/sparkplug"
	"github.com/robotalks/plc.go/pkg/transfer"
)

// BlockConfig describes one block and its driver binding.
type BlockConfig struct {
	Name   string `mapstructure:"name"`
	Length int    `mapstructure:"length"`
	// Driver is gpio, remote or sparkplug.
	Driver   string `mapstructure:"driver"`
	Pins     []int  `mapstructure:"pins"`
	Inverted bool   `mapstructure:"inverted"`
	Node     uint8  `mapstructure:"node"`
	Start    uint8  `mapstructure:"start"`
}

// Blocks are the four block sequences.
type Blocks struct {
	DI []BlockConfig `mapstructure:"di"`
	DO []BlockConfig `mapstructure:"do"`
	AI []BlockConfig `mapstructure:"ai"`
	AO []BlockConfig `mapstructure:"ao"`
}

// Of returns the sequence of kind.
func (b *Blocks) Of(kind ioblock.Kind) []BlockConfig {
	switch kind {
	case ioblock.DigitalInput:
		return b.DI
	case ioblock.DigitalOutput:
		return b.DO
	case ioblock.AnalogInput:
		return b.AI
	}
	return b.AO
}

// SparkplugConfig identifies the Sparkplug edge node. An empty Edge defaults
// to the machine derived name.
type SparkplugConfig struct {
	Group string `mapstructure:"group"`
	Edge  string `mapstructure:"edge"`
}

// Timing groups the periods of the node tasks.
type Timing struct {
	StatusPeriod    time.Duration `mapstructure:"status_period"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	TransferTimeout time.Duration `mapstructure:"transfer_timeout"`
	InitTimeout     time.Duration `mapstructure:"init_timeout"`
	// StartTimeout bounds the wait for the first run command, 0 waits
	// forever.
	StartTimeout time.Duration `mapstructure:"start_timeout"`
}

// Layout is the static configuration of a node.
type Layout struct {
	NodeID    uint8           `mapstructure:"node_id"`
	Name      string          `mapstructure:"name"`
	Blocks    Blocks          `mapstructure:"blocks"`
	Sparkplug SparkplugConfig `mapstructure:"sparkplug"`
	Timing    Timing          `mapstructure:"timing"`
}

// ErrNoLayout indicates an empty layout path.
var ErrNoLayout = errors.New("layout file not specified")

func setDefaults(v *viper.Viper) {
	v.SetDefault("node_id", 1)
	v.SetDefault("name", "plc.io.node")
	v.SetDefault("sparkplug.group", "plc")
	v.SetDefault("timing.status_period", "1s")
	v.SetDefault("timing.poll_interval", "10ms")
	v.SetDefault("timing.settle_delay", "3s")
	v.SetDefault("timing.transfer_timeout", "2s")
	v.SetDefault("timing.init_timeout", "5s")
}

// Load reads the layout file at path (YAML, JSON or TOML by extension).
// Scalar settings can be overridden by PLC_ environment variables, e.g.
// PLC_NODE_ID.
func Load(path string) (*Layout, error) {
	if path == "" {
		return nil, ErrNoLayout
	}
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	v.SetEnvPrefix("PLC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read layout: %w", err)
	}
	return decode(v)
}

// Parse reads a layout from content of the given type (yaml, json, toml).
func Parse(configType string, content string) (*Layout, error) {
	v := viper.New()
	v.SetConfigType(configType)
	setDefaults(v)
	if err := v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Layout, error) {
	var l Layout
	if err := v.Unmarshal(&l); err != nil {
		return nil, fmt.Errorf("failed to unmarshal layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Validate checks the layout is consistent.
func (l *Layout) Validate() error {
	if !transfer.NodeID(l.NodeID).IsValid() {
		return fmt.Errorf("invalid node_id %d", l.NodeID)
	}
	if len(l.Name) > remoteio.MaxNameLength {
		return fmt.Errorf("name longer than %d", remoteio.MaxNameLength)
	}
	for _, kind := range ioblock.Kinds {
		for i, bc := range l.Blocks.Of(kind) {
			if err := bc.validate(); err != nil {
				return fmt.Errorf("%s block %d: %w", kind, i, err)
			}
		}
	}
	return nil
}

func (bc *BlockConfig) validate() error {
	if bc.Length <= 0 {
		return fmt.Errorf("invalid length %d", bc.Length)
	}
	switch ioblock.DriverType(bc.Driver) {
	case ioblock.DriverGPIO:
		if len(bc.Pins) != bc.Length {
			return fmt.Errorf("%d pins for %d points", len(bc.Pins), bc.Length)
		}
	case ioblock.DriverRemote:
		if !transfer.NodeID(bc.Node).IsValid() {
			return fmt.Errorf("invalid remote node %d", bc.Node)
		}
	case ioblock.DriverSparkplug:
		if bc.Name == "" {
			return sparkplug.ErrUnnamedBlock
		}
	default:
		return fmt.Errorf("unknown driver %q", bc.Driver)
	}
	return nil
}

// Drivers provides the driver back-ends blocks are bound to. A nil back-end
// makes blocks bound to it fail to build.
type Drivers struct {
	Pins      gpio.Pins
	Requester *remoteio.Requester
	Sparkplug *sparkplug.EdgeNode
}

// Build creates the block table. Blocks without name are named after their
// kind and index, e.g. DI0.
func (l *Layout) Build(d Drivers) (*ioblock.Table, error) {
	table := ioblock.NewTable()
	for _, kind := range ioblock.Kinds {
		for i, bc := range l.Blocks.Of(kind) {
			drv, err := bc.driver(d)
			if err != nil {
				return nil, fmt.Errorf("%s block %d: %w", kind, i, err)
			}
			b := ioblock.NewBlock(kind.IOType(), bc.Length, drv)
			b.Name = bc.Name
			if b.Name == "" {
				b.Name = fmt.Sprintf("%s%d", kind, i)
			}
			table.Add(kind, b)
		}
	}
	return table, nil
}

func (bc *BlockConfig) driver(d Drivers) (ioblock.Driver, error) {
	switch ioblock.DriverType(bc.Driver) {
	case ioblock.DriverGPIO:
		if d.Pins != nil {
			return gpio.New(d.Pins, bc.Inverted, bc.Pins...), nil
		}
	case ioblock.DriverRemote:
		if d.Requester != nil {
			return d.Requester.Bind(remoteio.Binding{Node: transfer.NodeID(bc.Node), Start: bc.Start}), nil
		}
	case ioblock.DriverSparkplug:
		if d.Sparkplug != nil {
			return &sparkplug.Driver{Node: d.Sparkplug}, nil
		}
	default:
		return nil, fmt.Errorf("unknown driver %q", bc.Driver)
	}
	return nil, fmt.Errorf("driver %s not available", bc.Driver)
}

// Uses reports whether any block is bound to driver type dt.
func (l *Layout) Uses(dt ioblock.DriverType) bool {
	for _, kind := range ioblock.Kinds {
		for _, bc := range l.Blocks.Of(kind) {
			if ioblock.DriverType(bc.Driver) == dt {
				return true
			}
		}
	}
	return false
}
