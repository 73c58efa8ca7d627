package cli

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"jellyneo/idb/internal/container"
	"jellyneo/idb/internal/service"
)

func (a *app) batchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <id>...",
		Short: "Look up many items concurrently and print one JSON line per item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseItemIDs(args)
			if err != nil {
				return err
			}

			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			kinds := map[string]int{}
			out := cmd.OutOrStdout()
			err = c.Run(cmd.Context(), func(ctx context.Context) error {
				return c.Service.Batch(ctx, ids, func(o service.Outcome) error {
					kinds[o.Kind]++
					return writeJSON(out, o)
				})
			})

			log.Infof("✅ Finished %d items: %v", len(ids), kinds)
			return err
		},
	}
}

func (a *app) enqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <id>...",
		Short: "Add item lookups to the Redis work queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseItemIDs(args)
			if err != nil {
				return err
			}

			c, err := a.open(cmd.Context(), container.WithQueue())
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := c.Service.Enqueue(cmd.Context(), ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %d items\n", n)
			return nil
		},
	}
}

func (a *app) workCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "work",
		Short: "Consume queued item lookups and print one JSON line per item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(cmd.Context(), container.WithQueue())
			if err != nil {
				return err
			}
			defer c.Close()

			if workers <= 0 {
				workers = a.cfg.IDB.MaxWorkers
			}

			out := cmd.OutOrStdout()
			return c.Run(cmd.Context(), func(ctx context.Context) error {
				return c.Service.RunWorkers(ctx, workers, func(o service.Outcome) error {
					return writeJSON(out, o)
				})
			})
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of consumers (default idb.max_workers)")
	return cmd
}
