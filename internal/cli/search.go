package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sopgraph/internal/models"
	"sopgraph/internal/service"
)

var (
	searchSource string
	searchTopK   int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Retrieve matching document chunks without synthesis",
	Long: `Search the ingested documents and print the retrieved chunks.

Runs the same retrieval pipeline as "ask" (semantic search plus graph
filtering) but skips answer synthesis, so no LLM is needed.

Examples:
  sopgraph search "torque specification"
  sopgraph search "jack placement" --source wheel_manual.md`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchSource, "source", "", "restrict search to one source document")
	searchCmd.Flags().IntVar(&searchTopK, "k", 0, "number of chunks to retrieve (default from config)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, err := getQueryService(ctx, false, searchTopK)
	if err != nil {
		return err
	}

	opts := service.QueryOptions{}
	if searchSource != "" {
		opts.Filter = map[string]string{"source": searchSource}
	}

	resp, err := svc.Query(ctx, args[0], opts)
	if err != nil {
		return err
	}

	if len(resp.Context) == 0 {
		fmt.Println("No matching chunks found.")
		return nil
	}

	printResults(resp.Context)
	fmt.Printf("\nStage: %s\n", resp.Stage)
	if len(resp.Entities) > 0 {
		fmt.Printf("Entities: %s\n", strings.Join(resp.Entities, ", "))
	}
	for _, reason := range resp.Degraded {
		fmt.Printf("Note: %s\n", reason)
	}
	return nil
}

func printResults(results []models.RetrievalResult) {
	for i, r := range results {
		fmt.Printf("%d. [%.2f] %s (chunk %s)\n", i+1, r.RelevanceScore, r.Metadata.Source, r.ChunkID)
		if r.Metadata.Section != "" {
			fmt.Printf("   @ %s\n", r.Metadata.Section)
		}
		text := r.Text
		if len(text) > 240 && !verbose {
			text = text[:240] + "..."
		}
		fmt.Printf("   %s\n", strings.ReplaceAll(text, "\n", "\n   "))
		if r.KGContext != nil && r.KGContext.Enhanced {
			for _, m := range r.KGContext.Matches {
				fmt.Printf("   graph: %s via %s\n", m.Entity, strings.Join(m.RelTypes, ", "))
			}
		}
	}
}
