package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"budgetsim/internal/core"
	"budgetsim/internal/ledger"
)

// withLedger opens the ledger for one command and closes it afterwards.
func (a *app) withLedger(cmd *cobra.Command, fn func(ctx context.Context, svc *ledger.Service) (any, error)) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	svc, repo, err := a.openLedger()
	if err != nil {
		return err
	}
	defer repo.Close()

	result, err := fn(ctx, svc)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func amountFlag(cmd *cobra.Command) (decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString("amount")
	return core.ParseAmount(raw)
}

func (a *app) depositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Add money to a family's bank balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			familyID, _ := cmd.Flags().GetInt64("family")
			amount, err := amountFlag(cmd)
			if err != nil {
				return err
			}
			return a.withLedger(cmd, func(ctx context.Context, svc *ledger.Service) (any, error) {
				return svc.Deposit(ctx, familyID, amount)
			})
		},
	}
	cmd.Flags().Int64("family", 0, "family id")
	cmd.Flags().String("amount", "", "amount in dollars")
	_ = cmd.MarkFlagRequired("family")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (a *app) withdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Take money out of a family's bank balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			familyID, _ := cmd.Flags().GetInt64("family")
			amount, err := amountFlag(cmd)
			if err != nil {
				return err
			}
			return a.withLedger(cmd, func(ctx context.Context, svc *ledger.Service) (any, error) {
				return svc.Withdraw(ctx, familyID, amount)
			})
		},
	}
	cmd.Flags().Int64("family", 0, "family id")
	cmd.Flags().String("amount", "", "amount in dollars")
	_ = cmd.MarkFlagRequired("family")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (a *app) payBillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay-bill",
		Short: "Pay one of a family's bills from its bank balance",
		Long: fmt.Sprintf(`Pay a bill from the family's bank balance.

Bill types: %v
Food takes a --week between 1 and 4; without one only the balance is charged.`, core.BillTypes()),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			familyID, _ := cmd.Flags().GetInt64("family")
			bill, _ := cmd.Flags().GetString("bill")
			week, _ := cmd.Flags().GetInt("week")
			amount, err := amountFlag(cmd)
			if err != nil {
				return err
			}
			return a.withLedger(cmd, func(ctx context.Context, svc *ledger.Service) (any, error) {
				return svc.PayBill(ctx, familyID, bill, amount, week)
			})
		},
	}
	cmd.Flags().Int64("family", 0, "family id")
	cmd.Flags().String("bill", "", "bill type, e.g. gas or autoLoan")
	cmd.Flags().String("amount", "", "amount in dollars")
	cmd.Flags().Int("week", 0, "food week (1-4)")
	_ = cmd.MarkFlagRequired("family")
	_ = cmd.MarkFlagRequired("bill")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (a *app) payEmployeeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay-employee",
		Short: "Pay a family member's wage for one week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			familyID, _ := cmd.Flags().GetInt64("family")
			personID, _ := cmd.Flags().GetInt64("person")
			week, _ := cmd.Flags().GetInt("week")
			amount, err := amountFlag(cmd)
			if err != nil {
				return err
			}
			return a.withLedger(cmd, func(ctx context.Context, svc *ledger.Service) (any, error) {
				return svc.PayEmployee(ctx, familyID, personID, week, amount)
			})
		},
	}
	cmd.Flags().Int64("family", 0, "family id")
	cmd.Flags().Int64("person", 0, "person id")
	cmd.Flags().Int("week", 0, "pay week (1-4)")
	cmd.Flags().String("amount", "", "amount in dollars")
	for _, name := range []string{"family", "person", "week", "amount"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *app) setStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-status",
		Short: "Set a person's OnLeave or Fired flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			personID, _ := cmd.Flags().GetInt64("person")
			status, _ := cmd.Flags().GetString("status")
			value, _ := cmd.Flags().GetBool("value")
			return a.withLedger(cmd, func(ctx context.Context, svc *ledger.Service) (any, error) {
				return svc.SetPersonStatus(ctx, personID, status, value)
			})
		},
	}
	cmd.Flags().Int64("person", 0, "person id")
	cmd.Flags().String("status", "", "OnLeave or Fired")
	cmd.Flags().Bool("value", true, "flag value; pass --value=false to clear")
	_ = cmd.MarkFlagRequired("person")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}
