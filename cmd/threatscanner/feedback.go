package main

import (
	"errors"

	"github.com/spf13/cobra"

	"ThreatScanner/internal/app"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record analyst labels and fold them into the model",
}

var feedbackApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply pending feedback to the current model",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, true, func(a *app.Application) error {
			applied, err := a.ApplyFeedback(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("applied %d feedback records\n", applied)
			return nil
		})
	},
}

var feedbackMarkCmd = &cobra.Command{
	Use:   "mark <external-id>",
	Short: "Label a stored document as a confirmed threat or a false positive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirmed, _ := cmd.Flags().GetBool("confirmed")
		falsePositive, _ := cmd.Flags().GetBool("false-positive")
		if confirmed == falsePositive {
			return errors.New("pass exactly one of --confirmed or --false-positive")
		}

		ctx := cmd.Context()
		return withApp(ctx, false, func(a *app.Application) error {
			if err := a.MarkFeedback(ctx, args[0], confirmed); err != nil {
				return err
			}
			cmd.Printf("recorded feedback for %s\n", args[0])
			return nil
		})
	},
}

func init() {
	feedbackMarkCmd.Flags().Bool("confirmed", false, "the document is a real threat")
	feedbackMarkCmd.Flags().Bool("false-positive", false, "the document is benign")

	feedbackCmd.AddCommand(feedbackApplyCmd)
	feedbackCmd.AddCommand(feedbackMarkCmd)
}
