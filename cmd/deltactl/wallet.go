package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dsatschool/delta-api/internal/domain/delta"
	"github.com/dsatschool/delta-api/internal/domain/user"
)

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletFreezeCmd)
	walletCmd.AddCommand(walletUnfreezeCmd)
}

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage user wallets",
}

var walletFreezeCmd = &cobra.Command{
	Use:   "freeze EMAIL",
	Short: "Freeze a wallet; frozen wallets cannot send or receive",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setFrozen(cmd, args[0], true) },
}

var walletUnfreezeCmd = &cobra.Command{
	Use:   "unfreeze EMAIL",
	Short: "Unfreeze a wallet",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setFrozen(cmd, args[0], false) },
}

func setFrozen(cmd *cobra.Command, email string, frozen bool) error {
	return withLedger(cmd, func(ctx context.Context, svc *delta.Service) error {
		u, err := svc.Users().GetByEmail(ctx, user.NormalizeEmail(email))
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("no user with email %s", email)
		}
		w, err := svc.SetFrozen(ctx, u.ID, frozen)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: frozen=%t balance=%s\n", u.Email, w.IsFrozen, delta.Format(w.Balance))
		return nil
	})
}
