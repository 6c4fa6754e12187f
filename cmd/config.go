package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeguard/codeguard/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the commented default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ".codeguard.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote default configuration to %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
