package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"curator/internal/models"
	"curator/internal/services"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var curateEnqueue bool

var outcomeColors = map[models.Outcome]func(format string, a ...interface{}) string{
	models.OutcomeKeep:    color.GreenString,
	models.OutcomeRefine:  color.CyanString,
	models.OutcomeArchive: color.YellowString,
	models.OutcomeDelete:  color.RedString,
	models.OutcomeTriage:  color.MagentaString,
	models.OutcomeError:   color.RedString,
}

// curateCmd represents the curate command
var curateCmd = &cobra.Command{
	Use:   "curate [source-file]",
	Short: "Run a curation batch over a JSONL content source",
	Long: `Reads content items from a JSONL file, deduplicates them, routes canonical
items through the scoring cascade, and persists a decision for every item.
With --enqueue the batch is handed to the background worker instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		sourcePath := appInstance.Config.Source.Path
		if len(args) > 0 {
			sourcePath = args[0]
		}
		if sourcePath == "" {
			return fmt.Errorf("no source file given and source.path is not configured")
		}

		if curateEnqueue {
			if appInstance.JobClient == nil {
				return fmt.Errorf("cannot enqueue: redis is not configured")
			}
			if err := appInstance.JobClient.EnqueueCurationBatch(cmd.Context(), sourcePath); err != nil {
				return fmt.Errorf("failed to enqueue curation batch: %w", err)
			}
			fmt.Printf("%s curation batch for %s\n", color.GreenString("Enqueued"), sourcePath)
			return nil
		}

		summary, err := appInstance.CurationService.CurateFile(cmd.Context(), sourcePath)
		if err != nil {
			return fmt.Errorf("curation batch failed: %w", err)
		}

		printBatchSummary(summary)
		return nil
	},
}

func printBatchSummary(summary *services.BatchSummary) {
	fmt.Printf("Curated %d items in %s (%d duplicate clusters, %d duplicates removed)\n",
		summary.Total, summary.Elapsed.Round(time.Millisecond), summary.Clusters, summary.Duplicates)

	if len(summary.Outcomes) == 0 {
		return
	}

	outcomes := make([]models.Outcome, 0, len(summary.Outcomes))
	for outcome := range summary.Outcomes {
		outcomes = append(outcomes, outcome)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i] < outcomes[j] })

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Outcome", "Count"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, outcome := range outcomes {
		label := string(outcome)
		if colorize, ok := outcomeColors[outcome]; ok {
			label = colorize("%s", label)
		}
		table.Append([]string{label, fmt.Sprintf("%d", summary.Outcomes[outcome])})
	}

	table.Render()
}

func init() {
	rootCmd.AddCommand(curateCmd)
	curateCmd.Flags().BoolVar(&curateEnqueue, "enqueue", false, "Enqueue the batch for the background worker instead of running inline")
}
