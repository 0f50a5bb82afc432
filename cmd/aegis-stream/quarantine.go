package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghalamif/AegisStream"
)

func newQuarantineCommand(load configLoader) *cobra.Command {
	var (
		dir  string
		from uint64
	)

	cmd := &cobra.Command{
		Use:   "quarantine",
		Short: "List frames that failed checksum validation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				cfg, err := load(cmd)
				if err != nil {
					return err
				}
				dir = cfg.Quarantine.Dir
			}

			q, err := aegisstream.OpenQuarantine(dir)
			if err != nil {
				return err
			}
			defer q.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tAT\tPORT\tKIND\tDATA")
			err = q.Iterate(aegisstream.QuarantineID(from), func(f aegisstream.QuarantinedFrame) error {
				_, err := fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n",
					f.ID, f.At.Format(time.RFC3339), f.Port, f.Kind, aegisstream.HexDump(f.Raw))
				return err
			})
			if err != nil {
				return err
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Quarantine directory (defaults to quarantine.dir from config)")
	cmd.Flags().Uint64Var(&from, "from", 0, "First frame id to list")
	return cmd
}
