package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"ThreatScanner/internal/app"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train and publish a new model from a labelled CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("dataset")
		return withApp(ctx, false, func(a *app.Application) error {
			report, err := a.Train(ctx, path)
			if err != nil {
				return err
			}
			cmd.Printf("trained on %d examples, held out %d\n", report.TrainSize, report.HeldOutSize)
			cmd.Printf("accuracy %.3f\n", report.Accuracy)
			cmd.Printf("threat  precision %.3f recall %.3f f1 %.3f\n",
				report.Threat.Precision, report.Threat.Recall, report.Threat.F1)
			cmd.Printf("benign  precision %.3f recall %.3f f1 %.3f\n",
				report.Benign.Precision, report.Benign.Recall, report.Benign.F1)
			return nil
		})
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict <text>",
	Short: "Classify a piece of text with the current model",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, true, func(a *app.Application) error {
			verdict := a.Predict(strings.Join(args, " "))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(verdict)
		})
	},
}

func init() {
	trainCmd.Flags().String("dataset", "", "CSV path (defaults to dataset.path from config)")
}
