package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dsatschool/delta-api/internal/domain/delta"
)

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesSeedCmd)
	rulesCmd.AddCommand(rulesListCmd)

	rulesSeedCmd.Flags().StringP("file", "f", "", "TOML file with [[rule]] tables (default: built-in rules)")
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage earning rules",
}

var rulesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert earning rules",
	Long: `Upsert the built-in earning rules, or the rules of a TOML file:

  [[rule]]
  name = "correct_answer"
  amount = 5
  [rule.conditions]
  min_accuracy = 80`,
	Args: cobra.NoArgs,
	RunE: runRulesSeed,
}

// readRules returns the rules named by --file, or nil for the built-in set.
func readRules(cmd *cobra.Command) ([]delta.EarningRule, error) {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	rules, err := delta.LoadRules(f)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%s defines no rules", path)
	}
	return rules, nil
}

func runRulesSeed(cmd *cobra.Command, args []string) error {
	rules, err := readRules(cmd)
	if err != nil {
		return err
	}
	return withLedger(cmd, func(ctx context.Context, svc *delta.Service) error {
		n, err := svc.SeedRules(ctx, rules)
		if err != nil {
			return fmt.Errorf("seed rules (%d written): %w", n, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d earning rules\n", n)
		return nil
	})
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List earning rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(ctx context.Context, svc *delta.Service) error {
			rules, err := svc.ListAllRules(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tAMOUNT\tACTIVE\tCONDITIONS")
			for _, r := range rules {
				fmt.Fprintf(w, "%s\t%s\t%t\t%v\n", r.Name, delta.Format(r.Amount), r.IsActive, map[string]interface{}(r.Conditions))
			}
			return w.Flush()
		})
	},
}
