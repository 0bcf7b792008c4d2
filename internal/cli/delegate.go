package cli

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

func newDelegateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delegate",
		Short: "Delegation token commands",
		Long: `A delegation token lets another identity act on your farm until it
expires or is revoked. The delegate passes the token ID with --delegation.`,
	}

	cmd.AddCommand(newDelegateCreateCmd())
	cmd.AddCommand(newDelegateListCmd())
	cmd.AddCommand(newDelegateRevokeCmd())

	return cmd
}

func newDelegateCreateCmd() *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "create <signer-id>",
		Short: "Let another identity act on your farm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if duration < time.Second {
				return fmt.Errorf("--duration must be at least 1s")
			}

			req := map[string]any{
				"signer_id":        args[0],
				"duration_seconds": int64(duration / time.Second),
			}
			var result Delegation
			if err := client.Post("/api/v1/delegations", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", time.Hour, "How long the token stays valid")

	return cmd
}

func newDelegateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List delegation tokens you have issued",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result DelegationList
			if err := client.Get("/api/v1/delegations", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newDelegateRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a delegation token you issued or hold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete("/api/v1/delegations/" + url.PathEscape(args[0])); err != nil {
				return err
			}

			NewOutput(cfg.Output).PrintMessage("Revoked " + args[0])
			return nil
		},
	}
}
