package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/riskintel-cli/internal/cost"
	"github.com/sells-group/riskintel-cli/internal/monitoring"
	"github.com/sells-group/riskintel-cli/internal/store"
)

var (
	roiLookback       int
	roiFraudPrevented float64
	roiManualSaved    float64
	roiOtherValue     float64
)

var roiCmd = &cobra.Command{
	Use:   "roi",
	Short: "Compute return on AI spend from tracked run costs",
	Long: `Compares the business value attributed to automated analysis
(fraud prevented, manual review cost saved, other value) against the
LLM spend recorded for runs in the lookback window.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, roiLookback)
		if err != nil {
			return eris.Wrap(err, "collect metrics")
		}

		result := cost.CalculateRoAI(cost.RoAIInput{
			FraudPrevented:  roiFraudPrevented,
			ManualCostSaved: roiManualSaved,
			AdditionalValue: roiOtherValue,
			LLMCost:         snap.TotalCostUSD,
		})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	roiCmd.Flags().IntVar(&roiLookback, "lookback", 720, "lookback window in hours")
	roiCmd.Flags().Float64Var(&roiFraudPrevented, "fraud-prevented", 0, "estimated fraud losses prevented, USD")
	roiCmd.Flags().Float64Var(&roiManualSaved, "manual-saved", 0, "manual review cost saved, USD")
	roiCmd.Flags().Float64Var(&roiOtherValue, "other-value", 0, "additional value generated, USD")
	rootCmd.AddCommand(roiCmd)
}
