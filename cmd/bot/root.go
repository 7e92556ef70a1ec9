package main

import "github.com/spf13/cobra"

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "goodluck-bot",
		Short:         "Telegram bot that counts trigger phrases in group chats",
		Long:          "goodluck-bot watches the group chats it is added to, counts messages matching the configured trigger phrases per sender and writes a match log plus a per-sender summary to the configured store.",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to an optional YAML config file")

	return rootCmd
}
