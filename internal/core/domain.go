package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// WeeksPerPeriod is the number of payable weeks in one simulation period.
const WeeksPerPeriod = 4

type (
	// Family is one simulated household: a bank balance plus the bills it owes.
	Family struct {
		ID        int64           `json:"id"`
		Name      string          `json:"name"`
		BankTotal decimal.Decimal `json:"bank_total"`

		HousingMortgage    decimal.Decimal `json:"housing_mortgage"`
		HousingTaxes       decimal.Decimal `json:"housing_taxes"`
		HousingMaintenance decimal.Decimal `json:"housing_maintenance"`
		UtilitiesGas       decimal.Decimal `json:"utilities_gas"`
		UtilitiesElectric  decimal.Decimal `json:"utilities_electric"`
		UtilitiesPhone     decimal.Decimal `json:"utilities_phone"`
		StudentLoans       decimal.Decimal `json:"student_loans"`
		Clothing           decimal.Decimal `json:"clothing"`
		CreditCard         decimal.Decimal `json:"credit_card"`
		AutomobileLoan     decimal.Decimal `json:"automobile_loan"`
		Misc               decimal.Decimal `json:"misc"`
		Prescriptions      decimal.Decimal `json:"prescriptions"`
		Medical            decimal.Decimal `json:"medical"`

		FoodWeekly    decimal.Decimal `json:"food_weekly"`
		FoodWeek1Paid bool            `json:"food_week1_paid"`
		FoodWeek2Paid bool            `json:"food_week2_paid"`
		FoodWeek3Paid bool            `json:"food_week3_paid"`
		FoodWeek4Paid bool            `json:"food_week4_paid"`
	}

	// Person is a household member. A person with any scheduled weekly pay is an employee.
	Person struct {
		ID        int64  `json:"id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		FamilyID  int64  `json:"family_id"`

		Week1Pay decimal.Decimal `json:"Week1Pay"`
		Week2Pay decimal.Decimal `json:"Week2Pay"`
		Week3Pay decimal.Decimal `json:"Week3Pay"`
		Week4Pay decimal.Decimal `json:"Week4Pay"`

		Week1Paid bool `json:"week1_paid"`
		Week2Paid bool `json:"week2_paid"`
		Week3Paid bool `json:"week3_paid"`
		Week4Paid bool `json:"week4_paid"`

		OnLeave bool `json:"OnLeave"`
		Fired   bool `json:"Fired"`
	}

	// PersonStatus names one of the employment flags on a Person.
	PersonStatus string
)

const (
	StatusOnLeave PersonStatus = "OnLeave"
	StatusFired   PersonStatus = "Fired"
)

// ValidateWeek reports whether w is a payable week number.
func ValidateWeek(w int) error {
	if w < 1 || w > WeeksPerPeriod {
		return Invalid(ErrInvalidWeek, "Week must be between 1 and %d", WeeksPerPeriod)
	}
	return nil
}

// FoodPaid reports whether the weekly food charge for week w has been settled.
func (f *Family) FoodPaid(w int) bool {
	if p := f.foodFlag(w); p != nil {
		return *p
	}
	return false
}

// MarkFoodPaid sets the food paid-flag for week w. Out of range weeks are ignored.
func (f *Family) MarkFoodPaid(w int) {
	if p := f.foodFlag(w); p != nil {
		*p = true
	}
}

func (f *Family) foodFlag(w int) *bool {
	switch w {
	case 1:
		return &f.FoodWeek1Paid
	case 2:
		return &f.FoodWeek2Paid
	case 3:
		return &f.FoodWeek3Paid
	case 4:
		return &f.FoodWeek4Paid
	}
	return nil
}

// Owed returns the amount currently owed for bill type b.
func (f *Family) Owed(b BillType) decimal.Decimal {
	spec, ok := billTable[b]
	if !ok {
		return decimal.Zero
	}
	return *spec.field(f)
}

// BillAmounts returns every bill column with its current value, in schema order.
func (f *Family) BillAmounts() []BillAmount {
	out := make([]BillAmount, 0, len(familyBillColumns))
	for _, c := range familyBillColumns {
		out = append(out, BillAmount{Column: c.column, Amount: *c.field(f)})
	}
	return out
}

// BillAmount pairs a bill column with its value.
type BillAmount struct {
	Column string
	Amount decimal.Decimal
}

// Validate checks the invariants an admin-created family must satisfy.
func (f *Family) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return Invalid(ErrInvalidInput, "Family name is required")
	}
	for _, b := range f.BillAmounts() {
		if b.Amount.IsNegative() {
			return Invalid(ErrInvalidAmount, "%s must not be negative", b.Column)
		}
	}
	if f.FoodWeekly.IsNegative() {
		return Invalid(ErrInvalidAmount, "food_weekly must not be negative")
	}
	return nil
}

// Pay returns the scheduled pay for week w.
func (p *Person) Pay(w int) decimal.Decimal {
	switch w {
	case 1:
		return p.Week1Pay
	case 2:
		return p.Week2Pay
	case 3:
		return p.Week3Pay
	case 4:
		return p.Week4Pay
	}
	return decimal.Zero
}

// Paid reports whether week w has already been paid out.
func (p *Person) Paid(w int) bool {
	if f := p.paidFlag(w); f != nil {
		return *f
	}
	return false
}

// MarkPaid sets the paid-flag for week w.
func (p *Person) MarkPaid(w int) {
	if f := p.paidFlag(w); f != nil {
		*f = true
	}
}

func (p *Person) paidFlag(w int) *bool {
	switch w {
	case 1:
		return &p.Week1Paid
	case 2:
		return &p.Week2Paid
	case 3:
		return &p.Week3Paid
	case 4:
		return &p.Week4Paid
	}
	return nil
}

// IsEmployee reports whether any week has scheduled pay.
func (p *Person) IsEmployee() bool {
	for w := 1; w <= WeeksPerPeriod; w++ {
		if p.Pay(w).IsPositive() {
			return true
		}
	}
	return false
}

// FullName joins first and last name.
func (p *Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Validate checks the invariants an admin-created person must satisfy.
func (p *Person) Validate() error {
	if strings.TrimSpace(p.FirstName) == "" && strings.TrimSpace(p.LastName) == "" {
		return Invalid(ErrInvalidInput, "Person name is required")
	}
	if p.FamilyID <= 0 {
		return Invalid(ErrInvalidInput, "family_id is required")
	}
	for w := 1; w <= WeeksPerPeriod; w++ {
		if p.Pay(w).IsNegative() {
			return Invalid(ErrInvalidAmount, "Week%dPay must not be negative", w)
		}
	}
	return nil
}

// ParsePersonStatus accepts exactly the flag names OnLeave and Fired.
func ParsePersonStatus(s string) (PersonStatus, error) {
	switch PersonStatus(s) {
	case StatusOnLeave, StatusFired:
		return PersonStatus(s), nil
	}
	return "", Invalid(ErrInvalidStatus, "Invalid status. Must be one of: %s, %s", StatusOnLeave, StatusFired)
}

// Apply sets the flag named by s on p.
func (s PersonStatus) Apply(p *Person, value bool) {
	switch s {
	case StatusOnLeave:
		p.OnLeave = value
	case StatusFired:
		p.Fired = value
	}
}

func (s PersonStatus) String() string { return string(s) }

// Change describes one committed mutation. It is what observers are told about.
type Change struct {
	Operation string `json:"operation"`
	FamilyID  int64  `json:"family_id,omitempty"`
	PersonID  int64  `json:"person_id,omitempty"`
}

func (c Change) String() string {
	return fmt.Sprintf("%s(family=%d person=%d)", c.Operation, c.FamilyID, c.PersonID)
}
