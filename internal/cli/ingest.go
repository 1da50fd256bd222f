package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sopgraph/internal/parser"
	"sopgraph/internal/service"
)

var ingestSource string

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest an SOP document into the index and graph",
	Long: `Ingest an SOP document.

Markdown and plain-text files are split and analyzed here; a .json file
is taken as pre-built chunk records from an external processor.
Re-ingesting a file appends new chunks, it never updates old ones - use
"delete --source" first to replace a document.

Examples:
  sopgraph ingest wheel_manual.md
  sopgraph ingest chunks.json --source wheel_manual.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source document name (default: file name)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	records, err := parser.ProcessFile(args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no content found in %s", args[0])
	}

	source := ingestSource
	if source == "" {
		source = records[0].Source
	}

	ix, err := getIndex(ctx)
	if err != nil {
		return err
	}
	svc := service.NewIngestService(ix, graphStore, collector, logger)

	res, err := svc.Ingest(ctx, source, records)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %s: %d chunks, %d steps (procedure %s)\n",
		res.Source, res.ChunksAdded, res.Steps, res.ProcedureID)
	if !res.GraphStored {
		fmt.Println("Warning: graph backend unavailable, procedure not stored; retrieval will be semantic-only")
	}
	return nil
}
