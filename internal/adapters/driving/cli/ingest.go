package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/groundwork/internal/adapters/driving/cli/styles"
	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/logger"
)

var ingestReportPath string

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Ingest a markdown directory into the vector store",
	Long: `Walks the directory for .md and .mdx files, splits each document into
header-aware chunks, embeds them and appends them to the vector store.

Each document's source URL comes from its source_url front matter.
Topic, author and job-board pages and hidden files are skipped.
Batches that fail to embed or store are skipped and listed in the summary;
use --report to write the full report as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestReportPath, "report", "", "write the ingest report as JSON to this file")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := requireService(ingestService != nil && newConnector != nil, "ingest service"); err != nil {
		return err
	}

	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	connector := newConnector(root)
	defer func() {
		if err := connector.Close(); err != nil {
			logger.Warn("close connector: %v", err)
		}
	}()

	report, ingestErr := ingestService.Ingest(cmd.Context(), connector)
	if report != nil {
		printIngestSummary(cmd, report)
		if ingestReportPath != "" {
			if err := writeIngestReport(ingestReportPath, report); err != nil {
				return err
			}
			cmd.Printf("Report written to %s\n", ingestReportPath)
		}
	}
	if ingestErr != nil {
		return fmt.Errorf("ingest failed: %w", ingestErr)
	}
	return nil
}

func printIngestSummary(cmd *cobra.Command, r *domain.IngestReport) {
	s := styles.DefaultStyles()

	cmd.Println(s.Title.Render("Ingest summary"))
	cmd.Printf("  Files:   %d processed of %d seen, %d skipped, %d failed\n",
		r.FilesProcessed, r.FilesSeen, len(r.Skipped), len(r.Failed))
	cmd.Printf("  Chunks:  %d stored of %d produced, %d empty dropped\n",
		r.ChunksStored, r.ChunksProduced, r.ChunksDropped)
	cmd.Printf("  Batches: %d (%d tokens)\n", r.Batches, r.Tokens)
	if !r.FinishedAt.IsZero() {
		cmd.Printf("  Took:    %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}

	for _, f := range r.Failed {
		cmd.Println(s.Warning.Render(fmt.Sprintf("  failed %s: %s", f.URI, f.Reason)))
	}
	for _, f := range r.BatchFailures {
		cmd.Println(s.Warning.Render(fmt.Sprintf("  batch %d (%d chunks) failed at %s: %v", f.Index, f.Size, f.Stage, f.Err)))
	}

	if r.Partial() {
		cmd.Println(s.Warning.Render("Ingest completed with failures."))
		return
	}
	cmd.Println(s.Success.Render("Ingest complete."))
}

func writeIngestReport(path string, r *domain.IngestReport) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
