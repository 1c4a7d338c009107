package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	var (
		pdf     bool
		outName string
		stdout  bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the interconnection newsletter",
		Long:  "Fetch flow data, run anomaly detection, and write the markdown report (optionally with a PDF rendition).",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipe, cfg, err := buildPipeline()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			doc, err := pipe.Report(ctx, nil)
			if err != nil {
				return fmt.Errorf("generate report: %w", err)
			}

			if stdout {
				fmt.Fprintln(cmd.OutOrStdout(), doc.Markdown)
			} else {
				if err := os.MkdirAll(cfg.Newsletter.OutputDir, 0o755); err != nil {
					return err
				}
				name := outName
				if name == "" {
					name = fmt.Sprintf("newsletter_%s.md", doc.GeneratedAt.Format("20060102_150405"))
				}
				path := filepath.Join(cfg.Newsletter.OutputDir, name)
				if err := os.WriteFile(path, []byte(doc.Markdown), 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
				log.Info().Str("path", path).Str("id", doc.ID).Msg("Report written")
			}

			if pdf {
				path, err := pipe.ExportPDF(ctx, "")
				if err != nil {
					return fmt.Errorf("export pdf: %w", err)
				}
				log.Info().Str("path", path).Msg("PDF written")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&pdf, "pdf", false, "Also export a PDF rendition")
	cmd.Flags().StringVar(&outName, "out", "", "Output file name (default newsletter_<timestamp>.md)")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print markdown to stdout instead of writing a file")
	return cmd
}

func newAlertsCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Detect and print current flow alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipe, _, err := buildPipeline()
			if err != nil {
				return err
			}
			if force {
				if _, err := pipe.Flows(cmd.Context(), true); err != nil {
					return err
				}
			}
			alerts, err := pipe.Alerts(cmd.Context())
			if err != nil {
				return err
			}
			if len(alerts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No alerts in the lookback window.")
				return nil
			}
			for _, a := range alerts {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %-6s %-30s %+8.1f%% (%.0f MW vs %.0f MW baseline)\n",
					a.Severity, a.Kind, a.Route, a.DeviationPct, a.CurrentMW, a.BaselineMW)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Bypass the cache and refetch flow data first")
	return cmd
}
