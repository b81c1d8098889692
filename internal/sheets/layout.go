package sheets

import (
	"strconv"

	"budgetsim/internal/core"
)

// Fixed leading columns of the export.
const (
	ColumnName      = "name"
	ColumnBankTotal = "bank_total"
)

// Header is the first row of the export: name, balance, every depleting bill
// column in schema order, then the weekly food charge and its paid flags.
func Header() []string {
	h := []string{ColumnName, ColumnBankTotal}
	var f core.Family
	for _, b := range f.BillAmounts() {
		h = append(h, b.Column)
	}
	h = append(h, "food_weekly")
	for w := 1; w <= core.WeeksPerPeriod; w++ {
		h = append(h, "food_week"+strconv.Itoa(w)+"_paid")
	}
	return h
}

// Row renders one family in Header order. Amounts are fixed to two places so
// the sheet never sees float noise.
func Row(f core.Family) []string {
	r := []string{f.Name, f.BankTotal.StringFixed(2)}
	for _, b := range f.BillAmounts() {
		r = append(r, b.Amount.StringFixed(2))
	}
	r = append(r, f.FoodWeekly.StringFixed(2))
	for w := 1; w <= core.WeeksPerPeriod; w++ {
		r = append(r, strconv.FormatBool(f.FoodPaid(w)))
	}
	return r
}

// Table is the header followed by one row per family.
func Table(families []core.Family) [][]string {
	out := make([][]string, 0, len(families)+1)
	out = append(out, Header())
	for _, f := range families {
		out = append(out, Row(f))
	}
	return out
}
