package cmd

import (
	"errors"
	"fmt"
	"os"

	"curator/internal/calibration"
	"curator/internal/models"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var calibrateEnqueue bool

// calibrateCmd represents the calibrate command
var calibrateCmd = &cobra.Command{
	Use:   "calibrate <content-type>",
	Short: "Fit a calibration model from the gold set for a content type",
	Long: `Fits a per-content-type logistic model from accumulated gold labels and
publishes it as a new version. Fitting is refused when the gold set is too
small; the previous model stays active. With --enqueue the fit runs in the
background worker.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		contentType := args[0]

		if calibrateEnqueue {
			if appInstance.JobClient == nil {
				return fmt.Errorf("cannot enqueue: redis is not configured")
			}
			if err := appInstance.JobClient.EnqueueCalibration(cmd.Context(), contentType); err != nil {
				return fmt.Errorf("failed to enqueue calibration fit: %w", err)
			}
			fmt.Printf("%s calibration fit for %q\n", color.GreenString("Enqueued"), contentType)
			return nil
		}

		model, err := calibration.RunFit(
			cmd.Context(),
			appInstance.Gold,
			appInstance.Calibrations,
			appInstance.Calibrator,
			contentType,
			appInstance.FeatureSpec(),
		)
		if err != nil {
			if errors.Is(err, models.ErrCalibrationRefused) {
				fmt.Printf("%s: %v\n", color.YellowString("Refused"), err)
				return nil
			}
			return fmt.Errorf("calibration fit failed: %w", err)
		}

		fmt.Printf("%s calibration model v%d for %q (gold size %d)\n",
			color.GreenString("Published"), model.Version, contentType, model.GoldSize)

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Precision", "Recall", "F1"})
		table.Append([]string{
			fmt.Sprintf("%.3f", model.Precision),
			fmt.Sprintf("%.3f", model.Recall),
			fmt.Sprintf("%.3f", model.F1),
		})
		table.Render()
		return nil
	},
}

// calibrateHistoryCmd lists published model versions for a content type.
var calibrateHistoryCmd = &cobra.Command{
	Use:   "history <content-type>",
	Short: "List published calibration model versions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		modelsList, err := appInstance.Calibrations.ListCalibrationModels(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to list calibration models: %w", err)
		}
		if len(modelsList) == 0 {
			fmt.Println("No calibration models published.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Version", "Gold Size", "Precision", "Recall", "F1", "Created At"})
		for _, m := range modelsList {
			table.Append([]string{
				fmt.Sprintf("%d", m.Version),
				fmt.Sprintf("%d", m.GoldSize),
				fmt.Sprintf("%.3f", m.Precision),
				fmt.Sprintf("%.3f", m.Recall),
				fmt.Sprintf("%.3f", m.F1),
				m.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
	calibrateCmd.AddCommand(calibrateHistoryCmd)
	calibrateCmd.Flags().BoolVar(&calibrateEnqueue, "enqueue", false, "Enqueue the fit for the background worker instead of running inline")
}
