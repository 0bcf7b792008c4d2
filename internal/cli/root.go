package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "villefarm",
		Short: "CLI tool for the villefarm API",
		Long: `villefarm is a CLI tool for interacting with the villefarm JSON API.

It supports identity management, farm operations (plant, harvest, update),
delegation tokens for acting on another player's farm, and real-time
streaming of farm events.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Output != "text" && cfg.Output != "json" {
				return fmt.Errorf("invalid output format %q: must be text or json", cfg.Output)
			}
			if err := cfg.LoadToken(); err != nil {
				return err
			}

			client = NewClient(cfg.ServerURL, cfg.Token)
			client.SetDelegation(cfg.Delegation)

			if cfg.Verbose {
				fmt.Fprintf(os.Stderr, "server: %s\n", cfg.ServerURL)
				if cfg.Delegation != "" {
					fmt.Fprintf(os.Stderr, "delegation: %s\n", cfg.Delegation)
				}
			}
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: VILLEFARM_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "Session token (env: VILLEFARM_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "Token file path (env: VILLEFARM_TOKEN_FILE)")
	rootCmd.PersistentFlags().StringVar(&cfg.Delegation, "delegation", cfg.Delegation, "Delegation token ID for acting on another farm (env: VILLEFARM_DELEGATION)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newIdentityCmd())
	rootCmd.AddCommand(newFarmCmd())
	rootCmd.AddCommand(newDelegateCmd())
	rootCmd.AddCommand(newKindsCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
