package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ThreatScanner/internal/app"
)

var threatsCmd = &cobra.Command{
	Use:   "threats",
	Short: "Inspect stored verdicts",
}

var threatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent stored verdicts",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		ctx := cmd.Context()
		return withApp(ctx, false, func(a *app.Application) error {
			rows, err := a.ListThreats(ctx, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSOURCE\tCLASS\tCONFIDENCE\tFEEDBACK\tCOLLECTED\tURL")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%s\t%s\n",
					r.ExternalID, r.Source, r.Verdict.ThreatClass, r.Verdict.Confidence,
					r.Feedback, r.CollectedAt.Format("2006-01-02 15:04"), r.URL)
			}
			return w.Flush()
		})
	},
}

func init() {
	threatsListCmd.Flags().Int("limit", 20, "maximum rows to show")
	threatsCmd.AddCommand(threatsListCmd)
}
