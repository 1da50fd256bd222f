package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sopgraph/internal/service"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index, graph and runtime statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print the full snapshot as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	ix, err := getIndex(ctx)
	if err != nil {
		return err
	}

	stats, err := service.NewStatsService(ix, graphStore, collector).Stats(ctx)
	if err != nil {
		return err
	}

	if statsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("Indexed chunks: %d\n", stats.IndexedChunks)
	fmt.Printf("Graph: %d procedures, %d steps, %d tools, %d materials, %d safety notes, %d edges\n",
		stats.Graph.Procedures, stats.Graph.Steps, stats.Graph.Tools,
		stats.Graph.Materials, stats.Graph.SafetyNotes, stats.Graph.Edges)

	if len(stats.Procedures) > 0 {
		fmt.Println("\nProcedures:")
		for _, p := range stats.Procedures {
			fmt.Printf("  - %s (%d steps, from %s)\n", p.Title, p.Steps, p.Source)
		}
	}
	return nil
}
