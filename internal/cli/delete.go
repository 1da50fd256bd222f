package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sopgraph/internal/service"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <source>",
	Short: "Delete a source document from the index and graph",
	Long: `Delete all chunks and graph procedures that came from a source
document. Requires confirmation unless --force is used.

Examples:
  sopgraph delete wheel_manual.md
  sopgraph delete old_manual.pdf --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	source := args[0]
	ctx := context.Background()

	if !deleteForce {
		fmt.Printf("About to delete all chunks and procedures from: %s\n", source)
		fmt.Print("\nContinue? [y/N]: ")

		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	ix, err := getIndex(ctx)
	if err != nil {
		return err
	}
	svc := service.NewIngestService(ix, graphStore, collector, logger)

	deleted, err := svc.DeleteSource(ctx, source)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d chunks from %s\n", deleted, source)
	return nil
}
