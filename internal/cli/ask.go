package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sopgraph/internal/llm"
	"sopgraph/internal/service"
)

var (
	askSource  string
	askShowCtx bool
	askTopK    int
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and get an LLM-synthesized answer",
	Long: `Ask a question about the ingested SOP documents.

The question runs through semantic search and the knowledge graph, and
the retrieved context is synthesized into an answer. Navigation phrases
("next step", "go back", "start procedure X") are routed to the active
procedure session instead.

Examples:
  sopgraph ask "Which tool do I need to remove the wheel?"
  sopgraph ask "next step" --session alice
  sopgraph ask "safety precautions for jacking" --source wheel_manual.md`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSource, "source", "", "restrict search to one source document")
	askCmd.Flags().BoolVar(&askShowCtx, "context", false, "print the retrieved context chunks")
	askCmd.Flags().IntVar(&askTopK, "k", 0, "number of context chunks to retrieve (default from config)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, err := getQueryService(ctx, true, askTopK)
	if err != nil {
		return err
	}

	opts := service.QueryOptions{
		SessionID: sessionID,
		History:   loadHistory(),
	}
	if askSource != "" {
		opts.Filter = map[string]string{"source": askSource}
	}

	resp, err := svc.Query(ctx, args[0], opts)
	if err != nil {
		return err
	}

	if resp.Navigation != nil {
		printNavResult(*resp.Navigation)
		return nil
	}

	if resp.Response != "" {
		fmt.Println(resp.Response)
	} else {
		fmt.Println("No answer synthesized.")
	}

	if len(resp.SafetyInformation) > 0 {
		fmt.Println("\nSafety information:")
		for _, note := range resp.SafetyInformation {
			fmt.Printf("  ! %s\n", note)
		}
	}

	if len(resp.Sources) > 0 {
		fmt.Printf("\nSources: %s\n", strings.Join(resp.Sources, ", "))
	}
	fmt.Printf("Confidence: %.2f  Stage: %s\n", resp.Confidence, resp.Stage)
	if len(resp.Entities) > 0 && verbose {
		fmt.Printf("Entities: %s\n", strings.Join(resp.Entities, ", "))
	}
	for _, reason := range resp.Degraded {
		fmt.Printf("Note: %s\n", reason)
	}

	if askShowCtx {
		fmt.Println()
		printResults(resp.Context)
	}

	saveHistory(args[0], resp.Response)
	return nil
}

// loadHistory returns the recent conversation for the session. The CLI
// is one process per question, so history lives in the session store
// alongside navigation state.
func loadHistory() []llm.Turn {
	turns, err := readHistoryFile(sessionID)
	if err != nil {
		return nil
	}
	return turns
}

func saveHistory(question, answer string) {
	if answer == "" {
		return
	}
	_ = appendHistoryFile(sessionID, []llm.Turn{
		{Role: "user", Content: question},
		{Role: "assistant", Content: answer},
	})
}
