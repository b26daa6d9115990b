package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/occ"
)

var tickerCmd = &cobra.Command{
	Use:   "ticker <symbol> <YYYY-MM-DD> <C|P> <strike>",
	Short: "Build an OCC option ticker",
	Example: `  investor ticker AAPL 2024-12-20 C 195
  AAPL241220C00195000`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		strike, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return fmt.Errorf("strike must be a number: %w", err)
		}
		var ticker string
		if strict, _ := cmd.Flags().GetBool("strict"); strict {
			ticker, err = occ.StrictTicker(args[0], args[1], args[2], strike, time.Now())
		} else {
			ticker, err = occ.Ticker(args[0], args[1], args[2], strike)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ticker)
		return nil
	},
}

var tickerParseCmd = &cobra.Command{
	Use:   "parse <ticker>",
	Short: "Decode an OCC option ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := occ.Parse(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "symbol %s, expires %s, type %s, strike %s\n",
			c.Underlying, c.Expiration.Format("2006-01-02"), c.Type, c.Strike.String())
		return nil
	},
}

func init() {
	tickerCmd.Flags().Bool("strict", false, "Reject expirations in the past")
	tickerCmd.AddCommand(tickerParseCmd)
	rootCmd.AddCommand(tickerCmd)
}
