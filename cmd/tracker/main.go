package main

import (
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configName string
	envOnly    bool
	output     string
	failFast   bool
}

func main() {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:          "tracker",
		Short:        "Cross-chain transfer lifecycle tracker",
		Long:         "Submits transfers, waits for their receipts and follows their settlement on the indexer",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configName, "config", "", "Config file name, without extension (default $TT_CONFIG_NAME or \"config\")")
	rootCmd.PersistentFlags().BoolVar(&opts.envOnly, "env", false, "Read configuration from TT_* environment variables only")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", formatText, "Snapshot output format: text, json or yaml")

	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(trackCmd(opts))
	rootCmd.AddCommand(submitCmd(opts))
	rootCmd.AddCommand(tokenCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
