package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/chzchzchz/bentpipe/radio"
)

func newFindCmd(c *cli) *cobra.Command {
	var (
		hint    string
		mdns    bool
		service string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "find",
		Short: "List attached and networked radios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := radio.ParseArgs(hint)
			if err != nil {
				return err
			}
			hws, err := radio.Find(cmd.Context(), h)
			if err != nil {
				// Drivers that did answer are still worth listing.
				c.logger.Warn("find", slog.Any("err", err))
			}
			if mdns {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				found, err := radio.Discover(ctx, service)
				if err != nil {
					c.logger.Warn("mdns discovery", slog.Any("err", err))
				}
				hws = append(hws, found...)
			}
			if len(hws) == 0 {
				fmt.Fprintln(c.stdout, "No devices found")
				return nil
			}
			for _, hw := range hws {
				fmt.Fprintf(c.stdout, "%-8s %s\n", hw.Driver, hw)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&hint, "args", "", "device address hint, e.g. type=sim")
	cmd.Flags().BoolVar(&mdns, "mdns", true, "browse mDNS for rtl_tcp servers")
	cmd.Flags().StringVar(&service, "service", radio.DefaultService, "mDNS service type")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "mDNS browse time")
	return cmd
}
