package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/tools"
)

var toolCmd = &cobra.Command{
	Use:   "tool <name> [key=value ...]",
	Short: "Call one broker tool directly, as the agent would",
	Long: `tool invokes a tool of the broker catalogue with key=value arguments
and prints the text the agent would see. A failing tool prints its error
text to stderr and exits with status 1.

  investor tool get_stock_price symbol=AAPL
  investor tool submit_stock_limit_buy_order symbol=TQQQ qty=10 limit_price=50`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx, cmd)
		if err != nil {
			return err
		}
		if env, _ := cmd.Flags().GetString("account"); env != "" {
			if cfg.Broker.Environment, err = broker.ParseEnvironment(env); err != nil {
				return err
			}
		}
		toolArgs, err := tools.ParseArgs(args[1:])
		if err != nil {
			return err
		}

		a := newApp(ctx, cfg)
		res := a.toolbox(a.session()).Invoke(ctx, args[0], toolArgs)
		if res.IsError {
			fmt.Fprintln(cmd.ErrOrStderr(), res.Text)
			shutdownSystem(ctx)
			os.Exit(1)
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		return nil
	},
}

var toolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tools of the catalogue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry := tools.Catalogue(tools.Deps{})
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Tool", "Description"})
		table.SetAutoFormatHeaders(false)
		table.SetAutoWrapText(true)
		table.SetColWidth(80)
		for _, t := range registry.Tools() {
			table.Append([]string{t.Name, t.Description})
		}
		table.Render()
		return nil
	},
}

func init() {
	toolCmd.Flags().String("account", "", "Start on the paper or live account (overrides broker.environment)")
	toolCmd.AddCommand(toolListCmd)
	rootCmd.AddCommand(toolCmd)
}
