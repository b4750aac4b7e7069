package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chzchzchz/bentpipe/store"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded configuration runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.record == "" {
				return errors.New("no history database; pass --record")
			}
			ss := store.NewSessionStore(c.record)
			defer ss.Close()
			sessions, err := ss.Sessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, s := range sessions {
				status := "ok"
				if s.Err != "" {
					status = s.Err
				}
				fmt.Fprintf(c.stdout, "%4d  %-16s  %s [%s]: %s\n",
					s.ID, humanize.Time(s.StartTime), s.Device, s.Args, status)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	return cmd
}
