package cli

import (
	"github.com/spf13/cobra"
)

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "Show plantable kinds with their cost and reward",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result KindsResult
			if err := client.Get("/api/v1/kinds", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}
