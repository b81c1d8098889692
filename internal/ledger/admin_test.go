package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetsim/internal/core"
	"budgetsim/internal/log"
)

func TestCreateFamilyValidates(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.svc.CreateFamily(ctx, core.Family{Name: ""})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = fx.svc.CreateFamily(ctx, core.Family{Name: "Boling", Clothing: amt("-3")})
	require.ErrorIs(t, err, core.ErrInvalidAmount)

	f, err := fx.svc.CreateFamily(ctx, core.Family{Name: "Boling", BankTotal: amt("400"), AutomobileLoan: amt("600")})
	require.NoError(t, err)
	assert.NotZero(t, f.ID)

	changes := fx.notifier.all()
	require.Len(t, changes, 1)
	assert.Equal(t, log.OpCreate, changes[0].Operation)
	assert.Equal(t, f.ID, changes[0].FamilyID)
}

func TestCreatePersonStartsUnpaidAndActive(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fam := fx.family(t, core.Family{})

	p, err := fx.svc.CreatePerson(ctx, core.Person{
		FirstName: "Aber",
		FamilyID:  fam.ID,
		Week1Pay:  amt("600"),
		Week1Paid: true,
		Fired:     true,
	})
	require.NoError(t, err)
	assert.False(t, p.Week1Paid)
	assert.False(t, p.Fired)
	assert.True(t, p.IsEmployee())

	_, err = fx.svc.CreatePerson(ctx, core.Person{FirstName: "Ghost", FamilyID: 404})
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdatePersonKeepsLedgerFlags(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fam := fx.family(t, core.Family{BankTotal: amt("100")})
	aber := fx.person(t, core.Person{FamilyID: fam.ID, Week1Pay: amt("600")})

	_, err := fx.svc.PayEmployee(ctx, fam.ID, aber.ID, 1, amt("600"))
	require.NoError(t, err)
	_, err = fx.svc.SetPersonStatus(ctx, aber.ID, "Fired", true)
	require.NoError(t, err)

	p, err := fx.svc.UpdatePerson(ctx, aber.ID, PersonProfile{
		FirstName: "Abernathy",
		LastName:  "Boling",
		WeekPay:   [4]decimal.Decimal{amt("650"), amt("650"), amt("0"), amt("0")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Abernathy Boling", p.FullName())
	assertMoney(t, "650", p.Week2Pay)
	assert.True(t, p.Week1Paid, "paid flag is ledger state")
	assert.True(t, p.Fired, "status is ledger state")

	_, err = fx.svc.UpdatePerson(ctx, aber.ID, PersonProfile{})
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestDeleteFamilyCascades(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fam := fx.family(t, core.Family{})
	aber := fx.person(t, core.Person{FamilyID: fam.ID})

	require.NoError(t, fx.svc.DeleteFamily(ctx, fam.ID))
	_, err := fx.repo.GetPerson(ctx, aber.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	require.ErrorIs(t, fx.svc.DeleteFamily(ctx, fam.ID), core.ErrNotFound)
	require.ErrorIs(t, fx.svc.DeletePerson(ctx, aber.ID), core.ErrNotFound)
}

func TestDeletePersonChangeNamesFamily(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fam := fx.family(t, core.Family{})
	aber := fx.person(t, core.Person{FamilyID: fam.ID})

	require.NoError(t, fx.svc.DeletePerson(ctx, aber.ID))

	changes := fx.notifier.all()
	require.Len(t, changes, 1)
	assert.Equal(t, core.Change{Operation: log.OpDelete, FamilyID: fam.ID, PersonID: aber.ID}, changes[0])

	require.ErrorIs(t, fx.svc.DeletePerson(ctx, aber.ID), core.ErrNotFound)
	assert.Len(t, fx.notifier.all(), 1, "failed delete must not notify")
}
