package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/coapclient/go-coap/message"
	"github.com/coapclient/go-coap/message/codes"
	"github.com/coapclient/go-coap/message/linkformat"
	"github.com/coapclient/go-coap/udp"
	"github.com/spf13/cobra"
)

var (
	payload       string
	payloadFile   string
	contentFormat int
	observeCount  int
	multicastAddr string
)

func dial(target udp.URI) (*udp.Client, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	c, err := udp.Dial(target.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot dial %v: %w", target.Host, err)
	}
	return c, nil
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, cfg.Timeout)
}

func readPayload() ([]byte, error) {
	if payloadFile == "" {
		return []byte(payload), nil
	}
	if payloadFile == "-" {
		var b bytes.Buffer
		if _, err := b.ReadFrom(os.Stdin); err != nil {
			return nil, fmt.Errorf("cannot read stdin: %w", err)
		}
		return b.Bytes(), nil
	}
	data, err := os.ReadFile(payloadFile)
	if err != nil {
		return nil, fmt.Errorf("cannot read payload file: %w", err)
	}
	return data, nil
}

func runRequest(cmd *cobra.Command, code codes.Code, rawURI string, withPayload bool) error {
	target, err := udp.ParseURI(rawURI)
	if err != nil {
		return err
	}
	req, err := udp.NewRequest(code, target.Path, target.Queries...)
	if err != nil {
		return err
	}
	if nonConf {
		req.Type = message.NonConfirmable
	}
	if withPayload {
		data, err := readPayload()
		if err != nil {
			return err
		}
		req.Options = req.Options.SetContentFormat(message.MediaType(contentFormat))
		req.Payload = data
	}
	c, err := dial(target)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()
	resp, err := c.Do(ctx, req)
	printMessage(cmd.OutOrStdout(), nil, resp)
	return err
}

var getCmd = &cobra.Command{
	Use:   "get <uri>",
	Short: "Fetch a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd, codes.GET, args[0], false)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <uri>",
	Short: "Delete a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd, codes.DELETE, args[0], false)
	},
}

var postCmd = &cobra.Command{
	Use:   "post <uri>",
	Short: "Post a payload to a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd, codes.POST, args[0], true)
	},
}

var putCmd = &cobra.Command{
	Use:   "put <uri>",
	Short: "Replace a resource with a payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd, codes.PUT, args[0], true)
	},
}

var observeCmd = &cobra.Command{
	Use:   "observe <uri>",
	Short: "Observe a resource until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := udp.ParseURI(args[0])
		if err != nil {
			return err
		}
		c, err := dial(target)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		received := make(chan struct{}, 1)
		out := cmd.OutOrStdout()
		regCtx, cancel := withTimeout(ctx)
		defer cancel()
		obs, err := c.Observe(regCtx, target.Path, func(m *message.Message) {
			printMessage(out, nil, m)
			select {
			case received <- struct{}{}:
			default:
			}
		}, target.Queries...)
		if err != nil {
			return err
		}
		n := 0
		for {
			select {
			case <-received:
				n++
				if observeCount > 0 && n >= observeCount {
					return cancelObservation(cmd.Context(), obs)
				}
			case <-obs.Done():
				return obs.Err()
			case <-ctx.Done():
				return cancelObservation(cmd.Context(), obs)
			}
		}
	},
}

func cancelObservation(ctx context.Context, obs *udp.Observation) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return obs.Cancel(ctx)
}

var discoverCmd = &cobra.Command{
	Use:   "discover <uri>",
	Short: "List the resources of a server, or of every server in a multicast group",
	Long: `discover fetches /.well-known/core, or the path of the uri when one is given.
With --multicast the request goes to the group instead of the uri host.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := udp.ParseURI(args[0])
		if err != nil {
			return err
		}
		c, err := dial(target)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := withTimeout(cmd.Context())
		defer cancel()
		out := cmd.OutOrStdout()
		if multicastAddr != "" {
			return c.MulticastDiscover(ctx, multicastAddr, func(from net.Addr, resources []linkformat.Resource) {
				printResources(out, from, resources)
			}, target.Queries...)
		}
		path := target.Path
		if path == "/" {
			path = udp.WellKnownCore
		}
		resources, err := c.DiscoverAt(ctx, path, target.Queries...)
		if err != nil {
			return err
		}
		printResources(out, nil, resources)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{postCmd, putCmd} {
		cmd.Flags().StringVarP(&payload, "payload", "p", "", "request payload")
		cmd.Flags().StringVarP(&payloadFile, "file", "f", "", "read the payload from a file, - for stdin")
		cmd.Flags().IntVar(&contentFormat, "content-format", int(message.TextPlain), "content format of the payload, e.g. "+strconv.Itoa(int(message.AppJSON))+" for json")
	}
	observeCmd.Flags().IntVarP(&observeCount, "count", "n", 0, "stop after n notifications")
	discoverCmd.Flags().StringVar(&multicastAddr, "multicast", "", "multicast group host:port, e.g. 224.0.1.187:5683")
}
