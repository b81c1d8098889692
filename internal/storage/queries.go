package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"budgetsim/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every statement against the families and people tables.
type Queries struct {
	db DBTX
}

// New binds the statements to a connection or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const familyColumns = `id, name, bank_total,
	housing_mortgage, housing_taxes, housing_maintenance,
	utilities_gas, utilities_electric, utilities_phone,
	student_loans, clothing, credit_card, automobile_loan,
	misc, prescriptions, medical,
	food_weekly, food_week1_paid, food_week2_paid, food_week3_paid, food_week4_paid`

const personColumns = `id, first_name, last_name, family_id,
	Week1Pay, Week2Pay, Week3Pay, Week4Pay,
	week1_paid, week2_paid, week3_paid, week4_paid,
	OnLeave, Fired`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFamily(row rowScanner) (core.Family, error) {
	var f core.Family
	var name sql.NullString
	err := row.Scan(
		&f.ID, &name, amount(&f.BankTotal),
		amount(&f.HousingMortgage), amount(&f.HousingTaxes), amount(&f.HousingMaintenance),
		amount(&f.UtilitiesGas), amount(&f.UtilitiesElectric), amount(&f.UtilitiesPhone),
		amount(&f.StudentLoans), amount(&f.Clothing), amount(&f.CreditCard), amount(&f.AutomobileLoan),
		amount(&f.Misc), amount(&f.Prescriptions), amount(&f.Medical),
		amount(&f.FoodWeekly), flag(&f.FoodWeek1Paid), flag(&f.FoodWeek2Paid), flag(&f.FoodWeek3Paid), flag(&f.FoodWeek4Paid),
	)
	f.Name = name.String
	return f, err
}

func scanPerson(row rowScanner) (core.Person, error) {
	var p core.Person
	var first, last sql.NullString
	err := row.Scan(
		&p.ID, &first, &last, &p.FamilyID,
		amount(&p.Week1Pay), amount(&p.Week2Pay), amount(&p.Week3Pay), amount(&p.Week4Pay),
		flag(&p.Week1Paid), flag(&p.Week2Paid), flag(&p.Week3Paid), flag(&p.Week4Paid),
		flag(&p.OnLeave), flag(&p.Fired),
	)
	p.FirstName, p.LastName = first.String, last.String
	return p, err
}

func storeErr(op string, err error) error {
	return &core.StoreError{Op: op, Err: err}
}

func (q *Queries) listFamilies(ctx context.Context, op, query string, args ...any) ([]core.Family, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	families := []core.Family{}
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		families = append(families, f)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return families, nil
}

// ListFamilies returns every family ordered by id.
func (q *Queries) ListFamilies(ctx context.Context) ([]core.Family, error) {
	return q.listFamilies(ctx, "list families", `SELECT `+familyColumns+` FROM families ORDER BY id`)
}

// FindFamiliesByName matches the whole name, ignoring case.
func (q *Queries) FindFamiliesByName(ctx context.Context, name string) ([]core.Family, error) {
	return q.listFamilies(ctx, "search families",
		`SELECT `+familyColumns+` FROM families WHERE name = ? COLLATE NOCASE ORDER BY id`,
		strings.TrimSpace(name))
}

func (q *Queries) GetFamily(ctx context.Context, id int64) (*core.Family, error) {
	f, err := scanFamily(q.db.QueryRowContext(ctx, `SELECT `+familyColumns+` FROM families WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFound("family", id)
	}
	if err != nil {
		return nil, storeErr("get family", err)
	}
	return &f, nil
}

func familyArgs(f *core.Family) []any {
	return []any{
		f.Name, amountArg(f.BankTotal),
		amountArg(f.HousingMortgage), amountArg(f.HousingTaxes), amountArg(f.HousingMaintenance),
		amountArg(f.UtilitiesGas), amountArg(f.UtilitiesElectric), amountArg(f.UtilitiesPhone),
		amountArg(f.StudentLoans), amountArg(f.Clothing), amountArg(f.CreditCard), amountArg(f.AutomobileLoan),
		amountArg(f.Misc), amountArg(f.Prescriptions), amountArg(f.Medical),
		amountArg(f.FoodWeekly),
		boolInt(f.FoodWeek1Paid), boolInt(f.FoodWeek2Paid), boolInt(f.FoodWeek3Paid), boolInt(f.FoodWeek4Paid),
	}
}

// CreateFamily inserts f and returns the stored row.
func (q *Queries) CreateFamily(ctx context.Context, f core.Family) (*core.Family, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO families (name, bank_total,
		housing_mortgage, housing_taxes, housing_maintenance,
		utilities_gas, utilities_electric, utilities_phone,
		student_loans, clothing, credit_card, automobile_loan,
		misc, prescriptions, medical,
		food_weekly, food_week1_paid, food_week2_paid, food_week3_paid, food_week4_paid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, familyArgs(&f)...)
	if err != nil {
		return nil, storeErr("create family", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storeErr("create family", err)
	}
	return q.GetFamily(ctx, id)
}

// SaveFamily writes balance, bills and food flags of f.
func (q *Queries) SaveFamily(ctx context.Context, f *core.Family) error {
	args := append(familyArgs(f), f.ID)
	res, err := q.db.ExecContext(ctx, `UPDATE families SET name = ?, bank_total = ?,
		housing_mortgage = ?, housing_taxes = ?, housing_maintenance = ?,
		utilities_gas = ?, utilities_electric = ?, utilities_phone = ?,
		student_loans = ?, clothing = ?, credit_card = ?, automobile_loan = ?,
		misc = ?, prescriptions = ?, medical = ?,
		food_weekly = ?, food_week1_paid = ?, food_week2_paid = ?, food_week3_paid = ?, food_week4_paid = ?
		WHERE id = ?`, args...)
	return checkAffected("save family", res, err, "family", f.ID)
}

// DeleteFamily removes the family; its people go with it.
func (q *Queries) DeleteFamily(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM families WHERE id = ?`, id)
	return checkAffected("delete family", res, err, "family", id)
}

// ListPeople returns people of one family, or everybody when familyID is 0.
func (q *Queries) ListPeople(ctx context.Context, familyID int64) ([]core.Person, error) {
	query := `SELECT ` + personColumns + ` FROM people`
	var args []any
	if familyID != 0 {
		query += ` WHERE family_id = ?`
		args = append(args, familyID)
	}
	query += ` ORDER BY id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list people", err)
	}
	defer rows.Close()

	people := []core.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, storeErr("list people", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list people", err)
	}
	return people, nil
}

func (q *Queries) GetPerson(ctx context.Context, id int64) (*core.Person, error) {
	p, err := scanPerson(q.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFound("person", id)
	}
	if err != nil {
		return nil, storeErr("get person", err)
	}
	return &p, nil
}

func personArgs(p *core.Person) []any {
	return []any{
		p.FirstName, p.LastName, p.FamilyID,
		amountArg(p.Week1Pay), amountArg(p.Week2Pay), amountArg(p.Week3Pay), amountArg(p.Week4Pay),
		boolInt(p.Week1Paid), boolInt(p.Week2Paid), boolInt(p.Week3Paid), boolInt(p.Week4Paid),
		boolInt(p.OnLeave), boolInt(p.Fired),
	}
}

// CreatePerson inserts p. A family_id without a family is reported as NotFound.
func (q *Queries) CreatePerson(ctx context.Context, p core.Person) (*core.Person, error) {
	if _, err := q.GetFamily(ctx, p.FamilyID); err != nil {
		return nil, err
	}
	res, err := q.db.ExecContext(ctx, `INSERT INTO people (first_name, last_name, family_id,
		Week1Pay, Week2Pay, Week3Pay, Week4Pay,
		week1_paid, week2_paid, week3_paid, week4_paid,
		OnLeave, Fired)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, personArgs(&p)...)
	if err != nil {
		return nil, storeErr("create person", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storeErr("create person", err)
	}
	return q.GetPerson(ctx, id)
}

// SavePerson writes every column of p.
func (q *Queries) SavePerson(ctx context.Context, p *core.Person) error {
	args := append(personArgs(p), p.ID)
	res, err := q.db.ExecContext(ctx, `UPDATE people SET first_name = ?, last_name = ?, family_id = ?,
		Week1Pay = ?, Week2Pay = ?, Week3Pay = ?, Week4Pay = ?,
		week1_paid = ?, week2_paid = ?, week3_paid = ?, week4_paid = ?,
		OnLeave = ?, Fired = ?
		WHERE id = ?`, args...)
	return checkAffected("save person", res, err, "person", p.ID)
}

func (q *Queries) DeletePerson(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM people WHERE id = ?`, id)
	return checkAffected("delete person", res, err, "person", id)
}

func checkAffected(op string, res sql.Result, err error, entity string, id int64) error {
	if err != nil {
		return storeErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(op, err)
	}
	if n == 0 {
		return core.NewNotFound(entity, id)
	}
	return nil
}

// Tx is the write surface available inside a transaction.
type Tx interface {
	GetFamily(ctx context.Context, id int64) (*core.Family, error)
	SaveFamily(ctx context.Context, f *core.Family) error
	CreateFamily(ctx context.Context, f core.Family) (*core.Family, error)
	DeleteFamily(ctx context.Context, id int64) error
	GetPerson(ctx context.Context, id int64) (*core.Person, error)
	SavePerson(ctx context.Context, p *core.Person) error
	CreatePerson(ctx context.Context, p core.Person) (*core.Person, error)
	DeletePerson(ctx context.Context, id int64) error
}

var _ Tx = (*Queries)(nil)
