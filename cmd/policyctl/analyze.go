package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"policy_compass/pkg/core/agent"
	"policy_compass/pkg/core/dashboard"
	"policy_compass/pkg/core/report"
	"policy_compass/pkg/models"
)

var (
	analyzeTopic     string
	analyzeCountries []string
	analyzeFormat    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one comparison and print it",
	Long: `Runs a single comparative analysis and prints it as JSON, Markdown or HTML.
Without --country the twenty largest economies are compared.

Example:
  policyctl analyze --topic "national AI strategies" --country Germany --country Japan --format md`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeTopic, "topic", "t", "", "Policy topic to compare (required)")
	analyzeCmd.Flags().StringArrayVarP(&analyzeCountries, "country", "c", nil, "Country to include (repeatable)")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "json", "Output format: json, md or html")
	analyzeCmd.MarkFlagRequired("topic")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	switch analyzeFormat {
	case "json", "md", "html":
	default:
		return fmt.Errorf("unknown format %q (want json, md or html)", analyzeFormat)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	w := a.Workspace()
	if len(analyzeCountries) > 0 {
		w.Countries = dashboard.NewCountryList(analyzeCountries...)
	}
	w.SetTopic(analyzeTopic)

	rec, err := w.Generate(ctx)
	if err != nil {
		return err
	}
	rec.Model = a.Agents.ModelFor(agent.RoleAnalysis)
	if err := a.Repo.Save(ctx, rec); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: analysis not stored: %v\n", err)
	}
	return writeRecord(cmd.OutOrStdout(), rec, analyzeFormat)
}

func writeRecord(out io.Writer, rec *models.AnalysisRecord, format string) error {
	switch format {
	case "md":
		text, err := report.Markdown(rec)
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, text)
		return err
	case "html":
		text, err := report.HTML(rec)
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, text)
		return err
	default:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*models.AnalysisRecord
			Chart []dashboard.ChartBar `json:"chart"`
		}{rec, dashboard.ChartBars(rec.Analysis)})
	}
}
