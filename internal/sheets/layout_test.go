package sheets

import (
	"testing"

	"budgetsim/internal/core"
)

func TestHeaderAndRowAlign(t *testing.T) {
	f := core.Family{
		Name:            "Boling",
		BankTotal:       core.MustAmount("400"),
		HousingMortgage: core.MustAmount("1200.1"),
		FoodWeekly:      core.MustAmount("75"),
		FoodWeek4Paid:   true,
	}
	h, r := Header(), Row(f)

	if len(h) != len(r) {
		t.Fatalf("header has %d columns, row has %d", len(h), len(r))
	}
	// name, balance, 13 bills, food_weekly, 4 flags
	if len(h) != 20 {
		t.Fatalf("unexpected column count %d: %v", len(h), h)
	}

	col := func(name string) string {
		for i, c := range h {
			if c == name {
				return r[i]
			}
		}
		t.Fatalf("missing column %s", name)
		return ""
	}
	tests := map[string]string{
		"name":             "Boling",
		"bank_total":       "400.00",
		"housing_mortgage": "1200.10",
		"medical":          "0.00",
		"food_weekly":      "75.00",
		"food_week1_paid":  "false",
		"food_week4_paid":  "true",
	}
	for name, want := range tests {
		if got := col(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestTable(t *testing.T) {
	if got := Table(nil); len(got) != 1 {
		t.Fatalf("empty table should have only the header, got %d rows", len(got))
	}
	got := Table([]core.Family{{Name: "A"}, {Name: "B"}})
	if len(got) != 3 || got[2][0] != "B" {
		t.Fatalf("unexpected table %v", got)
	}
}
