package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "codeguard",
	Short: "Analyzer for defects in LLM-generated code",
	Long: `codeguard analyzes a (prompt, code) pair - a natural-language intent
and a machine-generated Python program - and emits a severity-scored
list of defects drawn from a ten-pattern taxonomy of language-model
failure modes.

The pipeline has three stages: structural detectors over the AST,
sandboxed execution with runtime classification, and a linguistic
comparison of prompt intent against code behavior.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default is .codeguard.yaml)")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
