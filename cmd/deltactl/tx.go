package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dsatschool/delta-api/internal/domain/delta"
)

func init() {
	rootCmd.AddCommand(txCmd)
	txCmd.AddCommand(txReverseCmd)

	txReverseCmd.Flags().String("reason", "", "Why the transaction is reversed (required)")
	_ = txReverseCmd.MarkFlagRequired("reason")
}

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Inspect and correct ledger transactions",
}

var txReverseCmd = &cobra.Command{
	Use:   "reverse TX_ID",
	Short: "Post a compensating transaction for a completed one",
	Args:  cobra.ExactArgs(1),
	RunE:  runTxReverse,
}

func runTxReverse(cmd *cobra.Command, args []string) error {
	txID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid transaction id %q", args[0])
	}
	reason, _ := cmd.Flags().GetString("reason")
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("--reason must not be empty")
	}

	return withLedger(cmd, func(ctx context.Context, svc *delta.Service) error {
		rev, err := svc.Reverse(ctx, txID, reason, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reversal %s: %s %s, balance now %s\n",
			rev.ID, rev.Type, delta.Format(rev.Amount), delta.Format(rev.BalanceAfter))
		return nil
	})
}
