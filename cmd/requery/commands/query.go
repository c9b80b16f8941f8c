package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/requery/internal/app"
)

func (c *CLI) newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <endpoint>",
		Short: "Resolve a query endpoint and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, _ := cmd.Flags().GetStringArray("arg")
			noCache, _ := cmd.Flags().GetBool("no-cache")

			endpointArgs, err := parseArgs(pairs)
			if err != nil {
				return err
			}

			return c.app.RunQuery(cmd.Context(), args[0], app.Options{
				Args:    endpointArgs,
				NoCache: noCache,
			})
		},
	}
	cmd.Flags().StringArrayP("arg", "a", nil, "Endpoint argument as key=value (repeatable)")
	cmd.Flags().BoolP("no-cache", "n", false, "Skip the snapshot and force a fresh fetch")
	return cmd
}
