package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/requery/internal/app"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <endpoint>",
		Short: "Subscribe to a query endpoint and stream entry updates",
		Long: "Subscribe to a query endpoint and print every entry state transition " +
			"until interrupted. File rules from the definition invalidate tags while " +
			"the subscription is live, triggering automatic refetches.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, _ := cmd.Flags().GetStringArray("arg")
			noCache, _ := cmd.Flags().GetBool("no-cache")

			endpointArgs, err := parseArgs(pairs)
			if err != nil {
				return err
			}

			return c.app.RunWatch(cmd.Context(), args[0], app.Options{
				Args:    endpointArgs,
				NoCache: noCache,
			})
		},
	}
	cmd.Flags().StringArrayP("arg", "a", nil, "Endpoint argument as key=value (repeatable)")
	cmd.Flags().BoolP("no-cache", "n", false, "Skip the snapshot and force a fresh fetch")
	return cmd
}
