package cmd

import (
	"fmt"
	"os"
	"strings"

	"curator/internal/clix"
	"curator/internal/models"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	triageListLimit  int
	triageListOffset int
)

// triageCmd represents the base command for triage operations.
var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Inspect and resolve borderline items awaiting human judgment",
	Long:  `Provides subcommands to list pending triage records and to resolve them with a terminal outcome. Resolutions replace the item's decision and feed the calibration gold set.`,
}

// triageListCmd lists pending triage records, oldest first.
var triageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending triage records",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}

		records, err := appInstance.TriageQueue.Pending(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list pending triage: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No pending triage records.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Item ID", "Content Type", "Suggested", "Borderline", "Created At"})
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)

		for _, rec := range records {
			borderline := make([]string, 0, len(rec.Borderline))
			for _, b := range rec.Borderline {
				borderline = append(borderline, fmt.Sprintf("%s=%.2f (floor %.2f)", b.Dimension, b.Score, b.Threshold))
			}
			table.Append([]string{
				rec.ItemID,
				rec.ContentType,
				string(rec.Suggested),
				strings.Join(borderline, ", "),
				rec.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		table.Render()
		return nil
	},
}

// triageResolveCmd resolves one pending record with a human outcome.
var triageResolveCmd = &cobra.Command{
	Use:   "resolve <item-id> <outcome>",
	Short: "Resolve a pending triage record with a terminal outcome",
	Long:  `Resolves the named item with one of: keep, refine, archive, delete. Resolution is final; resolving the same item twice is a conflict.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		itemID, outcome := args[0], args[1]

		decision, err := appInstance.TriageQueue.Resolve(cmd.Context(), itemID, models.Outcome(outcome))
		if err != nil {
			return fmt.Errorf("failed to resolve triage for %s: %w", itemID, err)
		}

		if err := appInstance.Decisions.SaveDecision(cmd.Context(), decision); err != nil {
			return fmt.Errorf("failed to persist resolved decision: %w", err)
		}

		fmt.Printf("%s %s as %s (%s)\n", color.GreenString("Resolved"), itemID, decision.Outcome, decision.Reason)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triageCmd)
	triageCmd.AddCommand(triageListCmd)
	triageCmd.AddCommand(triageResolveCmd)

	triageListCmd.Flags().IntVarP(&triageListLimit, "limit", "n", 20, "Maximum number of records to list")
	triageListCmd.Flags().IntVarP(&triageListOffset, "offset", "o", 0, "Number of records to skip")
}
