package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// restoreStep is the largest single move used to put the balance back.
// It matches the default transaction cap so the restore itself is accepted.
var restoreStep = decimal.NewFromInt(1000)

type limitCase struct {
	name     string
	op       string
	amount   float64
	expectOK bool
}

var limitCases = []limitCase{
	{name: "deposit > 1000 rejected", op: "deposit", amount: 1001, expectOK: false},
	{name: "deposit negative rejected", op: "deposit", amount: -5, expectOK: false},
	{name: "deposit 1000 accepted", op: "deposit", amount: 1000, expectOK: true},
	{name: "withdraw > 1000 rejected", op: "withdraw", amount: 1001, expectOK: false},
	{name: "withdraw negative rejected", op: "withdraw", amount: -10, expectOK: false},
}

func (a *app) checkLimitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-limits",
		Short: "Verify transaction amount bounds against a running server",
		Long: `Run deposits and withdrawals just inside and outside the amount bounds
against the first family on a running server, then put its balance back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return checkLimits(cmd.Context(), newRemote(a.serverURL()), cmd.OutOrStdout())
		},
	}
}

func checkLimits(ctx context.Context, api *remote, out io.Writer) error {
	fmt.Fprintln(out, "Checking /families to get baseline...")
	families, err := api.ListFamilies(ctx)
	if err != nil {
		return err
	}
	if len(families) == 0 {
		return errors.New("no family records found for testing")
	}

	id := families[0].ID
	original := families[0].BankTotal
	fmt.Fprintf(out, "Using family id=%d, original bank_total=%s\n", id, original)

	for _, tc := range limitCases {
		fmt.Fprintf(out, "- %s... ", tc.name)
		err := api.transact(ctx, tc.op, map[string]any{"family_id": id, "amount": tc.amount})

		var apiErr *apiError
		if err != nil && !errors.As(err, &apiErr) {
			fmt.Fprintln(out, "FAILED")
			return err
		}
		if ok := err == nil; ok != tc.expectOK {
			fmt.Fprintln(out, "FAILED")
			if apiErr != nil {
				return fmt.Errorf("%s: %w", tc.name, apiErr)
			}
			return fmt.Errorf("%s: request was accepted", tc.name)
		}
		fmt.Fprintln(out, "OK")
	}

	if err := restoreBalance(ctx, api, id, original, out); err != nil {
		return fmt.Errorf("restore balance: %w", err)
	}
	fmt.Fprintln(out, "All checks passed")
	return nil
}

// restoreBalance moves the balance back through the ledger in capped steps.
func restoreBalance(ctx context.Context, api *remote, id int64, original decimal.Decimal, out io.Writer) error {
	fam, err := api.GetFamily(ctx, id)
	if err != nil {
		return err
	}
	diff := fam.BankTotal.Sub(original)
	if diff.IsZero() {
		return nil
	}
	fmt.Fprintf(out, "Restoring original bank_total (%s -> %s)\n", fam.BankTotal, original)

	op := "withdraw"
	if diff.IsNegative() {
		op = "deposit"
		diff = diff.Neg()
	}
	for diff.IsPositive() {
		step := decimal.Min(diff, restoreStep)
		if err := api.transact(ctx, op, map[string]any{"family_id": id, "amount": step.String()}); err != nil {
			return err
		}
		diff = diff.Sub(step)
	}
	return nil
}
