package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newFarmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "farm",
		Short: "Farm commands",
		Long: `Farm commands act on your own farm by default. Pass an owner ID to act
on someone else's farm; mutations then need --delegation with a token the
owner issued to you.`,
	}

	cmd.AddCommand(newFarmInitCmd())
	cmd.AddCommand(newFarmShowCmd())
	cmd.AddCommand(newFarmPlantCmd())
	cmd.AddCommand(newFarmHarvestCmd())
	cmd.AddCommand(newFarmUpdateCmd())
	cmd.AddCommand(newFarmTendCmd())
	cmd.AddCommand(newFarmWatchCmd())

	return cmd
}

func newFarmInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create your farm",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result OperationResult
			if err := client.Post("/api/v1/farm", nil, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newFarmShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [owner]",
		Short: "Show a farm",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := farmPath(args)
			if err != nil {
				return err
			}

			var result Farm
			if err := client.Get(path, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newFarmPlantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plant <kind> [owner]",
		Short: "Plant a kind on an empty plot",
		Long: `Plant a kind on an empty plot, paying its cost in gold.

Run "villefarm kinds" to list the kinds with their costs and rewards.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := farmPath(args[1:])
			if err != nil {
				return err
			}

			req := map[string]string{"kind": args[0]}
			var result OperationResult
			if err := client.Post(path+"/plant", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newFarmHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest [owner]",
		Short: "Harvest a mature plot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return farmAction(args, "/harvest")
		},
	}
}

func newFarmUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update [owner]",
		Short: "Touch a farm, checking it exists and you may act on it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return farmAction(args, "/update")
		},
	}
}

func newFarmTendCmd() *cobra.Command {
	var strategy string

	cmd := &cobra.Command{
		Use:   "tend [owner]",
		Short: "Let a bot harvest and replant a farm",
		Long: `Let a bot harvest the plot if it is mature and replant it.

Strategies:
  - greedy: plant the most expensive kind you can afford
  - random: plant a random affordable kind`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := farmPath(args)
			if err != nil {
				return err
			}

			req := map[string]string{"strategy": strategy}
			var result TendResult
			if err := client.Post(path+"/tend", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "greedy", "Bot strategy: greedy, random")

	return cmd
}

func farmAction(args []string, action string) error {
	path, err := farmPath(args)
	if err != nil {
		return err
	}

	var result OperationResult
	if err := client.Post(path+action, nil, &result); err != nil {
		return err
	}

	NewOutput(cfg.Output).Print(result)
	return nil
}

// farmOwner returns the owner given as an argument, or the current identity
func farmOwner(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	me, err := currentIdentity()
	if err != nil {
		return "", err
	}
	return me.ID, nil
}

func farmPath(args []string) (string, error) {
	owner, err := farmOwner(args)
	if err != nil {
		return "", err
	}
	return "/api/v1/farms/" + url.PathEscape(owner), nil
}
