package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	logLevel  string
	network   string
	blockSize int
	timeout   time.Duration
	nonConf   bool

	cfg Config
)

var rootCmd = &cobra.Command{
	Use:   "coapctl",
	Short: "CoAP client over UDP",
	Long: `coapctl sends CoAP requests to a server, observes resources and
discovers them through /.well-known/core. Targets are coap:// URIs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return applyFlags(cmd, &cfg)
	},
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cmd *cobra.Command, c *Config) error {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.LogLevel = logLevel
	}
	if flags.Changed("network") {
		c.Network = network
	}
	if flags.Changed("block-size") {
		c.BlockSize = blockSize
	}
	if flags.Changed("timeout") {
		c.Timeout = timeout
	}
	return nil
}

func newRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "yaml config file")
	pf.StringVar(&logLevel, "log-level", "warn", "log level: trace, debug, info, warn, error")
	pf.StringVar(&network, "network", "udp", "socket network: udp, udp4 or udp6")
	pf.IntVar(&blockSize, "block-size", 1024, "preferred block size: 16, 32, ..., 1024")
	pf.DurationVar(&timeout, "timeout", 0, "request timeout (default 93s)")
	pf.BoolVar(&nonConf, "non", false, "send non-confirmable requests")

	rootCmd.AddCommand(getCmd, deleteCmd, postCmd, putCmd, observeCmd, discoverCmd)
}
