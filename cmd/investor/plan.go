package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/pipeline"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the batched decision tree for a given price",
	Long: `plan shows the conditions and actions the batched strategy would
hand to the agent when the stock trades at --price. Nothing is sent to the
model or the broker.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		price, _ := cmd.Flags().GetFloat64("price")
		if price <= 0 {
			return fmt.Errorf("--price must be positive")
		}
		ladder, err := newLadder(cmd, cfg)
		if err != nil {
			return err
		}

		lv := ladder.Levels(price)
		plan := pipeline.Sequence{ladder.Prelude(), ladder.Plan(lv)}
		if !ladder.Config().EnsurePaper {
			plan = pipeline.Sequence{ladder.Plan(lv)}
		}
		leaves, conditions := pipeline.Count(plan)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s at %.2f: take profit %.2f, buy at %.2f, reprice below %.2f\n",
			ladder.Config().Symbol, lv.Price, lv.TakeProfit, lv.Buy, lv.RepriceBelow)
		fmt.Fprintf(out, "%d actions, %d conditions\n\n", leaves, conditions)
		fmt.Fprintln(out, pipeline.Describe(plan))
		return nil
	},
}

func init() {
	planCmd.Flags().Float64("price", 0, "Current stock price")
	rootCmd.AddCommand(planCmd)
}
