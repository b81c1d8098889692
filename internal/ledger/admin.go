package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"budgetsim/internal/core"
	"budgetsim/internal/log"
	"budgetsim/internal/storage"
)

// PersonProfile is the part of a person an administrator may edit after
// creation. Paid-flags and status stay under ledger control.
type PersonProfile struct {
	FirstName string
	LastName  string
	WeekPay   [core.WeeksPerPeriod]decimal.Decimal
}

// CreateFamily registers a household with its opening balance and bills.
func (s *Service) CreateFamily(ctx context.Context, f core.Family) (*core.Family, error) {
	var out *core.Family
	fields := log.NewFields().WithAmount(f.BankTotal)

	err := s.run(ctx, log.OpCreate, fields, nil,
		f.Validate,
		func(tx storage.Tx) error {
			created, err := tx.CreateFamily(ctx, f)
			out = created
			return err
		})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, core.Change{Operation: log.OpCreate, FamilyID: out.ID})
	return out, nil
}

// DeleteFamily removes a household together with its people.
func (s *Service) DeleteFamily(ctx context.Context, id int64) error {
	err := s.run(ctx, log.OpDelete, log.NewFields().WithFamily(id), []string{familyKey(id)},
		noCheck,
		func(tx storage.Tx) error { return tx.DeleteFamily(ctx, id) })
	if err != nil {
		return err
	}

	s.notify(ctx, core.Change{Operation: log.OpDelete, FamilyID: id})
	return nil
}

// CreatePerson adds a household member. New people start unpaid and active.
func (s *Service) CreatePerson(ctx context.Context, p core.Person) (*core.Person, error) {
	p.Week1Paid, p.Week2Paid, p.Week3Paid, p.Week4Paid = false, false, false, false
	p.OnLeave, p.Fired = false, false

	var out *core.Person
	err := s.run(ctx, log.OpCreate, log.NewFields().WithFamily(p.FamilyID), []string{familyKey(p.FamilyID)},
		p.Validate,
		func(tx storage.Tx) error {
			created, err := tx.CreatePerson(ctx, p)
			out = created
			return err
		})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, core.Change{Operation: log.OpCreate, FamilyID: out.FamilyID, PersonID: out.ID})
	return out, nil
}

// UpdatePerson replaces name and pay schedule.
func (s *Service) UpdatePerson(ctx context.Context, id int64, profile PersonProfile) (*core.Person, error) {
	var out *core.Person
	err := s.run(ctx, log.OpUpdate, log.NewFields().WithPerson(id), []string{personKey(id)},
		noCheck,
		func(tx storage.Tx) error {
			p, err := tx.GetPerson(ctx, id)
			if err != nil {
				return err
			}
			p.FirstName, p.LastName = profile.FirstName, profile.LastName
			p.Week1Pay, p.Week2Pay, p.Week3Pay, p.Week4Pay = profile.WeekPay[0], profile.WeekPay[1], profile.WeekPay[2], profile.WeekPay[3]
			if err := p.Validate(); err != nil {
				return err
			}
			if err := tx.SavePerson(ctx, p); err != nil {
				return err
			}
			out = p
			return nil
		})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, core.Change{Operation: log.OpUpdate, FamilyID: out.FamilyID, PersonID: id})
	return out, nil
}

// DeletePerson removes one household member. The change names the family so
// family-scoped readers refresh too.
func (s *Service) DeletePerson(ctx context.Context, id int64) error {
	var familyID int64
	err := s.run(ctx, log.OpDelete, log.NewFields().WithPerson(id), []string{personKey(id)},
		noCheck,
		func(tx storage.Tx) error {
			p, err := tx.GetPerson(ctx, id)
			if err != nil {
				return err
			}
			familyID = p.FamilyID
			return tx.DeletePerson(ctx, id)
		})
	if err != nil {
		return err
	}

	s.notify(ctx, core.Change{Operation: log.OpDelete, FamilyID: familyID, PersonID: id})
	return nil
}

func noCheck() error { return nil }
