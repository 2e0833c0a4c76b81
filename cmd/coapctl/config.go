package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/units"
	"github.com/coapclient/go-coap/net/blockwise"
	"github.com/coapclient/go-coap/options"
	"github.com/coapclient/go-coap/udp"
	udpClient "github.com/coapclient/go-coap/udp/client"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds the coapctl settings. Flags override values loaded from the file.
type Config struct {
	Network         string        `yaml:"network"`
	LogLevel        string        `yaml:"log_level"`
	Timeout         time.Duration `yaml:"timeout"`
	AckTimeout      time.Duration `yaml:"ack_timeout"`
	AckRandomFactor float64       `yaml:"ack_random_factor"`
	MaxRetransmit   uint32        `yaml:"max_retransmit"`
	BlockSize       int           `yaml:"block_size"`
	MaxMessageSize  string        `yaml:"max_message_size"`
	MulticastWindow time.Duration `yaml:"multicast_window"`
	MulticastHops   int           `yaml:"multicast_hop_limit"`
}

func defaultConfig() Config {
	return Config{
		Network:         "udp",
		LogLevel:        "warn",
		Timeout:         udpClient.DefaultTransmission.MaxRetransmitWait(),
		AckTimeout:      udpClient.DefaultTransmission.AckTimeout,
		AckRandomFactor: udpClient.DefaultTransmission.AckRandomFactor,
		MaxRetransmit:   udpClient.DefaultTransmission.MaxRetransmit,
		BlockSize:       1024,
		MaxMessageSize:  "64KiB",
		MulticastWindow: udpClient.DefaultMulticastWindow,
		MulticastHops:   1,
	}
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse %v: %w", path, err)
	}
	return cfg, nil
}

func (c Config) maxMessageSize() (uint32, error) {
	size, err := units.ParseBase2Bytes(c.MaxMessageSize)
	if err != nil {
		return 0, fmt.Errorf("invalid max_message_size %q: %w", c.MaxMessageSize, err)
	}
	if size <= 0 || size > units.Base2Bytes(^uint32(0)) {
		return 0, fmt.Errorf("invalid max_message_size %q: out of range", c.MaxMessageSize)
	}
	return uint32(size), nil
}

func (c Config) logger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger(), nil
}

// Options converts the config to client options.
func (c Config) Options() ([]udp.Option, error) {
	maxMessageSize, err := c.maxMessageSize()
	if err != nil {
		return nil, err
	}
	szx, err := blockwise.SZXFromSize(c.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("invalid block_size %v: %w", c.BlockSize, err)
	}
	logger, err := c.logger()
	if err != nil {
		return nil, err
	}
	return []udp.Option{
		options.WithNetwork(c.Network),
		options.WithLogger(logger),
		options.WithMaxMessageSize(maxMessageSize),
		options.WithBlockwise(true, szx),
		options.WithTransmission(c.AckTimeout, c.AckRandomFactor, c.MaxRetransmit),
		options.WithMulticast(c.MulticastWindow, c.MulticastHops, false),
	}, nil
}
