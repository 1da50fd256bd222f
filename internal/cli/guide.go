package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sopgraph/internal/models"
)

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Step through a procedure interactively",
	Long: `Walk through a procedure one step at a time.

Each session (--session) tracks its own procedure and position, so
several users can follow different procedures at once.

Examples:
  sopgraph guide start "wheel replacement"
  sopgraph guide next --session alice
  sopgraph guide status
  sopgraph guide end`,
}

var guideStartCmd = &cobra.Command{
	Use:   "start <procedure name>",
	Short: "Start a procedure from the beginning",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		nav, err := getNavigator(ctx)
		if err != nil {
			return err
		}
		res, err := nav.Start(ctx, sessionID, args[0])
		if err != nil {
			return err
		}
		printNavResult(res)
		return nil
	},
}

var guideNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Advance to the next step",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		nav, err := getNavigator(ctx)
		if err != nil {
			return err
		}
		res, err := nav.Next(ctx, sessionID)
		if err != nil {
			return err
		}
		printNavResult(res)
		return nil
	},
}

var guidePrevCmd = &cobra.Command{
	Use:     "prev",
	Aliases: []string{"previous"},
	Short:   "Go back to the previous step",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		nav, err := getNavigator(ctx)
		if err != nil {
			return err
		}
		res, err := nav.Previous(ctx, sessionID)
		if err != nil {
			return err
		}
		printNavResult(res)
		return nil
	},
}

var guideCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current step",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		nav, err := getNavigator(ctx)
		if err != nil {
			return err
		}
		res, err := nav.Current(ctx, sessionID)
		if err != nil {
			return err
		}
		printNavResult(res)
		return nil
	},
}

var guideStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show procedure progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		nav, err := getNavigator(ctx)
		if err != nil {
			return err
		}
		status, err := nav.Status(ctx, sessionID)
		if err != nil {
			return err
		}
		if !status.Active {
			fmt.Println("No active procedure.")
			return nil
		}
		fmt.Printf("Procedure: %s\n", status.ProcedureName)
		fmt.Printf("Step %d of %d (%.0f%%)\n", status.CurrentStep, status.TotalSteps, status.Percentage)
		fmt.Printf("Current step: %s\n", status.StepText)
		return nil
	},
}

var guideEndCmd = &cobra.Command{
	Use:   "end",
	Short: "End the active procedure",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		nav, err := getNavigator(ctx)
		if err != nil {
			return err
		}
		res, completion, err := nav.End(ctx, sessionID)
		if err != nil {
			return err
		}
		fmt.Println(res.Message)
		if completion != nil {
			fmt.Printf("Completed %d of %d steps (%.0f%%)\n",
				completion.CompletedSteps, completion.TotalSteps, completion.Percentage)
		}
		return nil
	},
}

var guideListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known procedures",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		procs, err := graphStore.ListProcedures(ctx)
		if err != nil {
			return fmt.Errorf("list procedures: %w", err)
		}
		if len(procs) == 0 {
			fmt.Println("No procedures ingested yet.")
			return nil
		}
		for _, p := range procs {
			fmt.Printf("- %s (%d steps, from %s)\n", p.Title, len(p.Steps), p.SourceDocID)
		}
		return nil
	},
}

func init() {
	guideCmd.AddCommand(guideStartCmd)
	guideCmd.AddCommand(guideNextCmd)
	guideCmd.AddCommand(guidePrevCmd)
	guideCmd.AddCommand(guideCurrentCmd)
	guideCmd.AddCommand(guideStatusCmd)
	guideCmd.AddCommand(guideEndCmd)
	guideCmd.AddCommand(guideListCmd)
}

func printNavResult(res models.NavResult) {
	fmt.Println(res.Message)
	if res.Success && res.StepNumber > 0 {
		marker := ""
		if res.IsLast {
			marker = " (last step)"
		}
		fmt.Printf("Step %d of %d%s\n", res.StepNumber, res.TotalSteps, marker)
		if res.StepText != "" && !strings.Contains(res.Message, res.StepText) {
			fmt.Println(res.StepText)
		}
	}
}
