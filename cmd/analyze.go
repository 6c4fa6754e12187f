package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codeguard/codeguard/internal/config"
	"github.com/codeguard/codeguard/internal/database"
	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a prompt/code pair from the command line",
	Long: `Run the full pipeline in-process (both phases, synchronously) and
print the classified findings.

Example:
  codeguard analyze --prompt "add two numbers" --file add.py`,
	RunE: runAnalyze,
}

var (
	analyzePrompt string
	analyzeFile   string
)

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzePrompt, "prompt", "", "The natural-language intent the code claims to satisfy")
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "Path to the Python file to analyze")
	analyzeCmd.MarkFlagRequired("prompt")
	analyzeCmd.MarkFlagRequired("file")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	code, err := os.ReadFile(analyzeFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", analyzeFile, err)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	// The one-shot CLI keeps its working state out of the way.
	cfg.Logger.Level = "warn"

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := database.NewStore(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	orch, _, queue, err := buildPipeline(cfg, store, log)
	if err != nil {
		return err
	}
	defer queue.Close()

	analysis, err := orch.AnalyzeFull(context.Background(), analyzePrompt, string(code))
	if err != nil {
		return err
	}

	printAnalysis(analysis)
	return nil
}

func printAnalysis(analysis *types.Analysis) {
	bold := color.New(color.Bold)
	bold.Printf("Analysis %s\n", analysis.ID)
	fmt.Printf("Severity: %s  Bugs: %v  Confidence: %.2f\n\n",
		severityColored(analysis.OverallSeverity), analysis.HasBugs, analysis.Confidence)
	fmt.Println(analysis.Summary)

	if len(analysis.Findings) == 0 {
		return
	}

	fmt.Println()
	for i, f := range analysis.Findings {
		bold.Printf("%d. [%s] %s\n", i+1, severityColored(f.Severity), f.Pattern)
		if f.Location != "" {
			fmt.Printf("   Location: %s\n", f.Location)
		}
		fmt.Printf("   %s\n", f.Description)
		if f.FixHint != "" {
			color.New(color.FgCyan).Printf("   Fix: %s\n", f.FixHint)
		}
		fmt.Println()
	}

	if analysis.Linguistic != nil {
		fmt.Printf("Intent match score: %.3f\n", analysis.Linguistic.IntentMatchScore)
	}
}

func severityColored(severity int) string {
	label := fmt.Sprintf("%d/10 %s", severity, types.SeverityLabel(severity))
	switch {
	case severity >= 8:
		return color.New(color.FgRed, color.Bold).Sprint(label)
	case severity >= 6:
		return color.New(color.FgRed).Sprint(label)
	case severity >= 4:
		return color.New(color.FgYellow).Sprint(label)
	default:
		return color.New(color.FgGreen).Sprint(label)
	}
}
