package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/riskintel-cli/internal/cost"
	"github.com/sells-group/riskintel-cli/internal/router"
)

// routeReport is the route command's output: the routing explanation
// plus, for single-provider routes, the estimated cost delta against
// the expensive baseline model.
type routeReport struct {
	Routing router.Details `json:"routing"`
	Savings *cost.Savings  `json:"estimated_savings,omitempty"`
}

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Explain where a task would be routed without invoking any provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := buildTask()
		if err != nil {
			return err
		}

		rt, err := router.New(router.Config{
			ContextThreshold: cfg.Router.ContextThreshold,
			ImpactThreshold:  cfg.Router.ImpactThreshold,
		})
		if err != nil {
			return err
		}

		report := routeReport{Routing: rt.Explain(task)}

		calc := cost.NewCalculator(cost.DefaultRates())
		switch report.Routing.Selected {
		case router.SelectPrimary:
			s := calc.EstimateSavings(cfg.Anthropic.PrimaryModel, task.ContextLength)
			report.Savings = &s
		case router.SelectSecondary:
			s := calc.EstimateSavings(cfg.Anthropic.SecondaryModel, task.ContextLength)
			report.Savings = &s
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	addTaskFlags(routeCmd)
	rootCmd.AddCommand(routeCmd)
}
