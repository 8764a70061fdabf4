package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "eidasnode",
	Short: "Cross-border identity federation node",
	Long: "eidasnode runs the connector and proxy-service roles of a cross-border " +
		"identity federation node: it exchanges signed authentication messages " +
		"with remote nodes, normalizes personal-attribute vocabularies and " +
		"enforces level-of-assurance and attribute-access policy.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "eidasnode.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
