package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// BillType is a payable category. Each maps to exactly one bill column on Family.
type BillType string

const (
	BillGas           BillType = "gas"
	BillElectric      BillType = "electric"
	BillPhone         BillType = "phone"
	BillAutoLoan      BillType = "autoLoan"
	BillStudentLoan   BillType = "studentLoan"
	BillCreditCard    BillType = "creditCard"
	BillMortgage      BillType = "mortgage"
	BillTaxes         BillType = "taxes"
	BillMaintenance   BillType = "maintenance"
	BillClothing      BillType = "clothing"
	BillFood          BillType = "food"
	BillQuikCash      BillType = "quikCash"
	BillPrescriptions BillType = "prescriptions"
)

type billColumn struct {
	column string
	field  func(*Family) *decimal.Decimal
}

type billSpec struct {
	billColumn
	// debt bills reject payments larger than the amount owed.
	debt bool
	// weekly bills are flat recurring charges settled by a paid-flag.
	weekly bool
}

var (
	colMortgage      = billColumn{"housing_mortgage", func(f *Family) *decimal.Decimal { return &f.HousingMortgage }}
	colTaxes         = billColumn{"housing_taxes", func(f *Family) *decimal.Decimal { return &f.HousingTaxes }}
	colMaintenance   = billColumn{"housing_maintenance", func(f *Family) *decimal.Decimal { return &f.HousingMaintenance }}
	colGas           = billColumn{"utilities_gas", func(f *Family) *decimal.Decimal { return &f.UtilitiesGas }}
	colElectric      = billColumn{"utilities_electric", func(f *Family) *decimal.Decimal { return &f.UtilitiesElectric }}
	colPhone         = billColumn{"utilities_phone", func(f *Family) *decimal.Decimal { return &f.UtilitiesPhone }}
	colStudentLoans  = billColumn{"student_loans", func(f *Family) *decimal.Decimal { return &f.StudentLoans }}
	colClothing      = billColumn{"clothing", func(f *Family) *decimal.Decimal { return &f.Clothing }}
	colCreditCard    = billColumn{"credit_card", func(f *Family) *decimal.Decimal { return &f.CreditCard }}
	colAutoLoan      = billColumn{"automobile_loan", func(f *Family) *decimal.Decimal { return &f.AutomobileLoan }}
	colMisc          = billColumn{"misc", func(f *Family) *decimal.Decimal { return &f.Misc }}
	colPrescriptions = billColumn{"prescriptions", func(f *Family) *decimal.Decimal { return &f.Prescriptions }}
	colMedical       = billColumn{"medical", func(f *Family) *decimal.Decimal { return &f.Medical }}
	colFood          = billColumn{"food_weekly", func(f *Family) *decimal.Decimal { return &f.FoodWeekly }}
)

// familyBillColumns lists the depleting bill columns in schema order.
var familyBillColumns = []billColumn{
	colMortgage, colTaxes, colMaintenance,
	colGas, colElectric, colPhone,
	colStudentLoans, colClothing, colCreditCard, colAutoLoan,
	colMisc, colPrescriptions, colMedical,
}

// billTable is the single mapping from payable bill type to Family column.
// Adding a bill type is one entry here.
var billTable = map[BillType]billSpec{
	BillGas:           {billColumn: colGas},
	BillElectric:      {billColumn: colElectric},
	BillPhone:         {billColumn: colPhone},
	BillAutoLoan:      {billColumn: colAutoLoan, debt: true},
	BillStudentLoan:   {billColumn: colStudentLoans, debt: true},
	BillCreditCard:    {billColumn: colCreditCard, debt: true},
	BillMortgage:      {billColumn: colMortgage, debt: true},
	BillTaxes:         {billColumn: colTaxes, debt: true},
	BillMaintenance:   {billColumn: colMaintenance, debt: true},
	BillClothing:      {billColumn: colClothing},
	BillFood:          {billColumn: colFood, weekly: true},
	BillQuikCash:      {billColumn: colMisc},
	BillPrescriptions: {billColumn: colPrescriptions},
}

// billOrder is the order bill types are listed in messages.
var billOrder = []BillType{
	BillGas, BillElectric, BillPhone,
	BillAutoLoan, BillStudentLoan, BillCreditCard,
	BillMortgage, BillTaxes, BillMaintenance,
	BillClothing, BillFood, BillQuikCash, BillPrescriptions,
}

// BillTypes returns every payable bill type.
func BillTypes() []BillType {
	out := make([]BillType, len(billOrder))
	copy(out, billOrder)
	return out
}

// ParseBillType validates s against the fixed enumeration.
func ParseBillType(s string) (BillType, error) {
	b := BillType(s)
	if _, ok := billTable[b]; ok {
		return b, nil
	}
	names := make([]string, len(billOrder))
	for i, t := range billOrder {
		names[i] = string(t)
	}
	return "", Invalid(ErrUnknownBillType, "Invalid bill type. Must be one of: %s", strings.Join(names, ", "))
}

// Column is the Family column this bill type settles.
func (b BillType) Column() string { return billTable[b].column }

// IsDebt reports whether payments are capped at the amount owed.
func (b BillType) IsDebt() bool { return billTable[b].debt }

// IsWeekly reports whether the bill is a recurring flat charge settled per week.
func (b BillType) IsWeekly() bool { return billTable[b].weekly }

func (b BillType) String() string { return string(b) }

// ApplyPayment updates the bill state of f after paying amount towards b.
// Weekly bills never deplete: a supplied week sets its paid-flag. Other bills
// are reduced, clamped at zero. The balance is not touched here.
func (f *Family) ApplyPayment(b BillType, amount decimal.Decimal, week int) {
	spec, ok := billTable[b]
	if !ok {
		return
	}
	if spec.weekly {
		if week != 0 {
			f.MarkFoodPaid(week)
		}
		return
	}
	owed := spec.field(f)
	*owed = decimal.Max(decimal.Zero, owed.Sub(amount))
}
