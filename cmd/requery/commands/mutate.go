package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/requery/internal/app"
)

func (c *CLI) newMutateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mutate <endpoint>",
		Short: "Trigger a mutation endpoint and wait for its outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, _ := cmd.Flags().GetStringArray("arg")

			endpointArgs, err := parseArgs(pairs)
			if err != nil {
				return err
			}

			return c.app.RunMutation(cmd.Context(), args[0], app.Options{
				Args: endpointArgs,
			})
		},
	}
	cmd.Flags().StringArrayP("arg", "a", nil, "Endpoint argument as key=value (repeatable)")
	return cmd
}
