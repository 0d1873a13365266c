package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/groundwork/internal/adapters/driving/cli/styles"
	"github.com/custodia-labs/groundwork/internal/core/domain"
)

// snippetLength bounds the passage preview in table output.
const snippetLength = 160

var (
	searchLimit         int
	searchMinSimilarity float64
	searchJSON          bool
	searchDedupe        bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed passages",
	Long: `Embeds the query and returns stored passages ranked by cosine similarity.
Passages below the similarity floor are excluded.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (0 = configured top_k)")
	searchCmd.Flags().Float64Var(&searchMinSimilarity, "min-similarity", 0, "similarity floor (0 = configured min_similarity)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchDedupe, "dedupe", false, "keep only the best passage per source")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := requireService(retriever != nil, "retriever"); err != nil {
		return err
	}

	opts := domain.RetrievalOptions{TopK: searchLimit, MinSimilarity: searchMinSimilarity}
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil {
			defaults := settings.Retrieval.Options()
			if opts.TopK <= 0 {
				opts.TopK = defaults.TopK
			}
			if opts.MinSimilarity == 0 {
				opts.MinSimilarity = defaults.MinSimilarity
			}
		}
	}

	results, err := retriever.Search(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if searchDedupe {
		results = domain.DedupeBySource(results)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.EvidenceItem) error {
	if results == nil {
		results = []domain.EvidenceItem{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.EvidenceItem) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	s := styles.DefaultStyles()
	cmd.Println("Results:")
	cmd.Println()
	for i, item := range results {
		// Format: [N] source (similarity)
		cmd.Printf("  [%d] %s %s\n", i+1, s.Source.Render(item.SourceURL), s.Similarity(item.Similarity))
		if preview := snippet(item.Content); preview != "" {
			cmd.Printf("      %s\n", preview)
		}
		cmd.Println()
	}
	return nil
}

// snippet collapses whitespace and truncates to snippetLength runes.
func snippet(content string) string {
	flat := strings.Join(strings.Fields(content), " ")
	runes := []rune(flat)
	if len(runes) <= snippetLength {
		return flat
	}
	return string(runes[:snippetLength]) + "..."
}
