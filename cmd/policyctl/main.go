package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"policy_compass/pkg/core/app"
	"policy_compass/pkg/core/config"
	"policy_compass/pkg/core/logger"
)

var (
	// Global flags
	configPath string
	apiKey     string
	simulate   bool
	verbose    bool
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "policyctl",
	Short: "Compare national policies on a topic with Gemini",
	Long: `policyctl asks a Gemini model for a structured comparison of how a set of
countries handle a policy topic, measured against Canadian policy, and lets
you ask follow-up questions grounded in that comparison.

Run "policyctl interactive" for a workspace session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		godotenv.Load()
		level := "warn"
		if verbose {
			level = "debug"
		}
		if err := logger.Init(level, ""); err != nil {
			return err
		}
		// keep stdout clean for report output
		logger.Log.SetOutput(os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/app.yaml", "Path to the yaml config")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (or set GEMINI_API_KEY env)")
	rootCmd.PersistentFlags().BoolVar(&simulate, "simulate", false, "Use canned responses instead of calling the API")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(interactiveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadApp applies the global flags over the loaded config and wires the app.
func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		cfg.Gemini.APIKey = apiKey
	}
	if simulate {
		cfg.Gemini.Simulate = true
	}
	// the CLI has no idle sessions to reap
	cfg.Chat.SessionTTL = 0
	return app.New(ctx, cfg)
}
