package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"budgetsim/internal/core"
)

type seedPerson struct {
	first, last string
	weekPay     string
}

type seedFamily struct {
	family core.Family
	people []seedPerson
}

func amt(s string) decimal.Decimal { return core.MustAmount(s) }

// classroomFamilies is the starting roster for a fresh simulation.
func classroomFamilies() []seedFamily {
	return []seedFamily{
		{
			family: core.Family{
				Name:               "Boling",
				BankTotal:          amt("400"),
				HousingMortgage:    amt("700"),
				HousingTaxes:       amt("120"),
				HousingMaintenance: amt("60"),
				UtilitiesGas:       amt("50"),
				UtilitiesElectric:  amt("80"),
				UtilitiesPhone:     amt("45"),
				StudentLoans:       amt("150"),
				Clothing:           amt("60"),
				CreditCard:         amt("200"),
				AutomobileLoan:     amt("600"),
				FoodWeekly:         amt("75"),
			},
			people: []seedPerson{
				{first: "Aber", last: "Boling", weekPay: "600"},
				{first: "Casey", last: "Boling"},
			},
		},
		{
			family: core.Family{
				Name:              "Castillo",
				BankTotal:         amt("250"),
				HousingMortgage:   amt("550"),
				HousingTaxes:      amt("90"),
				UtilitiesGas:      amt("40"),
				UtilitiesElectric: amt("70"),
				UtilitiesPhone:    amt("35"),
				CreditCard:        amt("120"),
				Prescriptions:     amt("30"),
				Medical:           amt("180"),
				FoodWeekly:        amt("90"),
			},
			people: []seedPerson{
				{first: "Dana", last: "Castillo", weekPay: "550"},
				{first: "Eli", last: "Castillo", weekPay: "200"},
			},
		},
		{
			family: core.Family{
				Name:              "Okafor",
				BankTotal:         amt("150"),
				HousingMortgage:   amt("450"),
				UtilitiesGas:      amt("35"),
				UtilitiesElectric: amt("60"),
				UtilitiesPhone:    amt("30"),
				StudentLoans:      amt("220"),
				AutomobileLoan:    amt("300"),
				Misc:              amt("25"),
				FoodWeekly:        amt("60"),
			},
			people: []seedPerson{
				{first: "Femi", last: "Okafor", weekPay: "480"},
			},
		},
	}
}

func (a *app) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the sample classroom families",
		Long: `Create the sample families and their members.

Families that already exist by name are left untouched, so seeding twice
is harmless.`,
		Args: cobra.NoArgs,
		RunE: a.runSeed,
	}
}

func (a *app) runSeed(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	svc, repo, err := a.openLedger()
	if err != nil {
		return err
	}
	defer repo.Close()

	out := cmd.OutOrStdout()
	for _, sf := range classroomFamilies() {
		existing, err := repo.FindFamiliesByName(ctx, sf.family.Name)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			fmt.Fprintf(out, "skip %s: already exists (id %d)\n", sf.family.Name, existing[0].ID)
			continue
		}

		fam, err := svc.CreateFamily(ctx, sf.family)
		if err != nil {
			return fmt.Errorf("create family %s: %w", sf.family.Name, err)
		}
		for _, sp := range sf.people {
			p := core.Person{FirstName: sp.first, LastName: sp.last, FamilyID: fam.ID}
			if sp.weekPay != "" {
				pay := amt(sp.weekPay)
				p.Week1Pay, p.Week2Pay, p.Week3Pay, p.Week4Pay = pay, pay, pay, pay
			}
			if _, err := svc.CreatePerson(ctx, p); err != nil {
				return fmt.Errorf("create person %s: %w", p.FullName(), err)
			}
		}
		fmt.Fprintf(out, "created %s (id %d) with %d people\n", fam.Name, fam.ID, len(sf.people))
	}
	return nil
}
