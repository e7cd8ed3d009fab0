package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"curator/internal/clix"

	"github.com/spf13/cobra"
)

var (
	costListLimit  int
	costListOffset int
)

// costCmd represents the base command for cost operations.
var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Manage and view oracle usage costs",
	Long:  `Provides subcommands to list detailed oracle usage logs and view cost summaries.`,
}

// costListCmd represents the command to list cost logs.
var costListCmd = &cobra.Command{
	Use:   "list",
	Short: "List detailed oracle usage logs",
	Long:  `Displays a paginated list of recorded oracle calls with associated costs and token counts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		// Use clix helper for pagination flags
		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}

		logs, err := appInstance.Usage.ListUsage(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list usage logs: %w", err)
		}

		if len(logs) == 0 {
			fmt.Println("No usage logs found.")
			return nil
		}

		// Use tabwriter for formatted output
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTimestamp\tProvider\tStage\tModel\tIn Tokens\tOut Tokens\tCost\tItem ID")
		fmt.Fprintln(w, "--\t---------\t--------\t-----\t-----\t---------\t----------\t----\t-------")

		for _, usage := range logs {
			itemIDStr := "N/A"
			if usage.ItemID != nil {
				itemIDStr = *usage.ItemID
			}

			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%.8f\t%s\n",
				usage.ID,
				usage.Timestamp.Format("2006-01-02 15:04:05"),
				usage.ProviderName,
				usage.Stage,
				usage.ModelName,
				usage.InputTokens,
				usage.OutputTokens,
				usage.Cost,
				itemIDStr,
			)
		}

		return w.Flush()
	},
}

// costSummaryCmd shows the aggregate spend across all recorded oracle calls.
var costSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show total oracle spend and token counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		totalCost, inputTokens, outputTokens, err := appInstance.Usage.GetUsageSummary(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to summarize usage: %w", err)
		}

		fmt.Printf("Total cost:     $%.6f\n", totalCost)
		fmt.Printf("Input tokens:   %d\n", inputTokens)
		fmt.Printf("Output tokens:  %d\n", outputTokens)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(costCmd)
	costCmd.AddCommand(costListCmd)
	costCmd.AddCommand(costSummaryCmd)

	costListCmd.Flags().IntVarP(&costListLimit, "limit", "n", 20, "Maximum number of usage logs to list")
	costListCmd.Flags().IntVarP(&costListOffset, "offset", "o", 0, "Number of usage logs to skip")
}
