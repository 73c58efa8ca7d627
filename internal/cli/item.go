package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"jellyneo/idb/internal/domain"
)

func (a *app) itemCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "item <id>",
		Short: "Show the name, image, inflation notice and price history of one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			record, err := c.Service.LookupItem(cmd.Context(), args[0])
			if err != nil {
				if domain.IsRecoverable(err) {
					return errors.New(userMessage(err))
				}
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), record)
			}
			renderRecord(cmd.OutOrStdout(), record)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the record as JSON")
	return cmd
}

func (a *app) promptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompt",
		Short: "Ask for item IDs until one can be shown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			return runPrompt(cmd.Context(), c.Service, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

type recordLookup interface {
	LookupItem(ctx context.Context, raw string) (*domain.ItemRecord, error)
}

// runPrompt re-asks on bad or unknown ids and stops at the first record shown,
// at end of input, or at the first failure that is not the user's to fix.
func runPrompt(ctx context.Context, svc recordLookup, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Enter Neopets item ID: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		record, err := svc.LookupItem(ctx, input)
		switch {
		case err == nil:
			renderRecord(out, record)
			return nil
		case domain.IsRecoverable(err):
			fmt.Fprintln(out, userMessage(err))
		default:
			return err
		}
	}
}
