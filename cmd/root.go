package cmd

import "github.com/spf13/cobra"

const configEnv = "AFKGUARD_CONFIG"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "afkguard",
		Short:         "afkguard: AFK detection and credit economy for session hosts",
		Long:          "afkguard tracks session activity, marks idle or pattern-moving sessions AFK, lets sessions spend earned credit minutes while AFK, and removes or relocates them when credits run out.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", envOrDefault(configEnv, ""), "Path to afkguard.toml (default ~/.afkguard/afkguard.toml)")

	load := func(cmd *cobra.Command) (*app, error) {
		return wireApp(cmd.Context(), configPath, cmd.ErrOrStderr())
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(load),
		newCreditsCmd(load),
	)

	return rootCmd
}
