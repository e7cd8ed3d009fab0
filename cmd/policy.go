package cmd

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"curator/internal/store"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// policyCmd shows the effective curation policy per content type, including
// which calibration model version (if any) is active for it.
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show effective curation policies per content type",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		types := appInstance.Policies.ContentTypes()
		sort.Strings(types)

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Content Type", "Min Length", "Outcomes", "Dimension Floors", "Gate", "Triage Margin", "Calibration"})
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)

		for _, ct := range types {
			policy := appInstance.Policies.For(ct)

			calibrationLabel := "static"
			if appInstance.Config.Calibration.Enabled {
				model, err := appInstance.Calibrations.LatestCalibrationModel(cmd.Context(), ct)
				switch {
				case err == nil:
					calibrationLabel = color.GreenString("v%d (f1 %.3f)", model.Version, model.F1)
				case errors.Is(err, store.ErrNotFound):
					calibrationLabel = color.YellowString("none yet")
				default:
					return fmt.Errorf("failed to load calibration model for %q: %w", ct, err)
				}
			}

			table.Append([]string{
				ct,
				fmt.Sprintf("%d", policy.MinLength),
				formatThresholds(policy.Outcomes),
				formatThresholds(policy.Dimensions),
				strings.Join(policy.Gate, ", "),
				fmt.Sprintf("%.2f", policy.Triage.Margin),
				calibrationLabel,
			})
		}

		table.Render()
		return nil
	},
}

func formatThresholds(thresholds map[string]float64) string {
	keys := make([]string, 0, len(thresholds))
	for k := range thresholds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, thresholds[k]))
	}
	return strings.Join(parts, " ")
}

func init() {
	rootCmd.AddCommand(policyCmd)
}
