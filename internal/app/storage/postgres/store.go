package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/person_service/internal/app/domain/person"
	"github.com/R3E-Network/person_service/internal/app/storage"
)

const (
	dialectPostgres = "postgres"
	tablePersons    = "persons"
	dateLayout      = "2006-01-02"

	colID        = "id"
	colKind      = "kind"
	colName      = "name"
	colBirthDate = "birth_date"
	colCity      = "city"
	colStreet    = "street"
	colBuilding  = "building"
	colHobby     = "hobby"
	colCompany   = "company"
	colSalary    = "salary"

	aliasPopulation = "population"
)

var personColumns = []interface{}{
	colID, colKind, colName, colBirthDate, colCity, colStreet, colBuilding, colHobby, colCompany, colSalary,
}

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

var _ storage.PersonStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, dialect: goqu.Dialect(dialectPostgres)}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// personRow is the single-table layout of all person kinds.
type personRow struct {
	ID        int            `db:"id"`
	Kind      string         `db:"kind"`
	Name      string         `db:"name"`
	BirthDate time.Time      `db:"birth_date"`
	City      string         `db:"city"`
	Street    string         `db:"street"`
	Building  int            `db:"building"`
	Hobby     sql.NullString `db:"hobby"`
	Company   sql.NullString `db:"company"`
	Salary    sql.NullInt64  `db:"salary"`
}

func (r personRow) toPerson() (person.Person, error) {
	p := person.Person{
		ID:        r.ID,
		Name:      r.Name,
		BirthDate: person.Date(r.BirthDate),
		Address:   person.Address{City: r.City, Street: r.Street, Building: r.Building},
	}
	switch person.Kind(r.Kind) {
	case person.KindPerson:
		p.Variant = person.Base{}
	case person.KindChild:
		p.Variant = person.Child{Hobby: r.Hobby.String}
	case person.KindEmployee:
		p.Variant = person.Employee{Company: r.Company.String, Salary: int(r.Salary.Int64)}
	default:
		return person.Person{}, fmt.Errorf("person %d: unknown kind %q", r.ID, r.Kind)
	}
	return p, nil
}

// record lays p out as column values. Columns foreign to p's kind are NULL.
func record(p person.Person) goqu.Record {
	rec := goqu.Record{
		colKind:      string(p.Kind()),
		colName:      p.Name,
		colBirthDate: person.Date(p.BirthDate).Format(dateLayout),
		colCity:      p.Address.City,
		colStreet:    p.Address.Street,
		colBuilding:  p.Address.Building,
		colHobby:     nil,
		colCompany:   nil,
		colSalary:    nil,
	}
	switch v := p.Variant.(type) {
	case person.Child:
		rec[colHobby] = v.Hobby
	case person.Employee:
		rec[colCompany] = v.Company
		rec[colSalary] = v.Salary
	}
	return rec
}

func (s *Store) selectPersons() *goqu.SelectDataset {
	return s.dialect.From(tablePersons).Select(personColumns...).Order(goqu.C(colID).Asc())
}

// --- PersonReader -------------------------------------------------------------

func (s *Store) GetPerson(ctx context.Context, id int) (person.Person, error) {
	return getPerson(ctx, s.db, s.selectPersons().Where(goqu.C(colID).Eq(id)), id)
}

func (s *Store) ListPersonsByCity(ctx context.Context, city string) ([]person.Person, error) {
	return s.list(ctx, s.selectPersons().Where(goqu.C(colCity).Eq(city)))
}

func (s *Store) ListPersonsByName(ctx context.Context, name string) ([]person.Person, error) {
	return s.list(ctx, s.selectPersons().Where(goqu.C(colName).Eq(name)))
}

func (s *Store) ListPersonsByBirthDate(ctx context.Context, from, to time.Time) ([]person.Person, error) {
	rng := goqu.Range(person.Date(from).Format(dateLayout), person.Date(to).Format(dateLayout))
	return s.list(ctx, s.selectPersons().Where(goqu.C(colBirthDate).Between(rng)))
}

func (s *Store) ListEmployeesBySalary(ctx context.Context, min, max int) ([]person.Person, error) {
	return s.list(ctx, s.selectPersons().Where(
		goqu.C(colKind).Eq(string(person.KindEmployee)),
		goqu.C(colSalary).Between(goqu.Range(min, max)),
	))
}

func (s *Store) ListChildren(ctx context.Context) ([]person.Person, error) {
	return s.list(ctx, s.selectPersons().Where(goqu.C(colKind).Eq(string(person.KindChild))))
}

func (s *Store) CityPopulation(ctx context.Context) ([]person.CityPopulation, error) {
	query, args, err := s.dialect.From(tablePersons).
		Select(goqu.C(colCity), goqu.COUNT(goqu.Star()).As(aliasPopulation)).
		GroupBy(goqu.C(colCity)).
		Order(goqu.C(colCity).Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build population query: %w", err)
	}

	var rows []struct {
		City       string `db:"city"`
		Population int    `db:"population"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	result := make([]person.CityPopulation, 0, len(rows))
	for _, r := range rows {
		result = append(result, person.CityPopulation{City: r.City, Population: r.Population})
	}
	return result, nil
}

func (s *Store) list(ctx context.Context, ds *goqu.SelectDataset) ([]person.Person, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	var rows []personRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	result := make([]person.Person, 0, len(rows))
	for _, r := range rows {
		p, err := r.toPerson()
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

func getPerson(ctx context.Context, q sqlx.QueryerContext, ds *goqu.SelectDataset, id int) (person.Person, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return person.Person{}, fmt.Errorf("build select query: %w", err)
	}

	var row personRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return person.Person{}, fmt.Errorf("person %d: %w", id, storage.ErrNotFound)
		}
		return person.Person{}, err
	}
	return row.toPerson()
}

// --- Transactions ------------------------------------------------------------

// InTx runs fn inside a database transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.PersonTx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
		}
	}()

	if err = fn(ctx, &personTx{tx: tx, store: s}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type personTx struct {
	tx    *sqlx.Tx
	store *Store
}

func (t *personTx) PersonExists(ctx context.Context, id int) (bool, error) {
	query, args, err := t.store.dialect.From(tablePersons).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C(colID).Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var n int
	if err := t.tx.GetContext(ctx, &n, query, args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *personTx) GetPerson(ctx context.Context, id int) (person.Person, error) {
	ds := t.store.selectPersons().Where(goqu.C(colID).Eq(id)).ForUpdate(exp.Wait)
	return getPerson(ctx, t.tx, ds, id)
}

func (t *personTx) CreatePerson(ctx context.Context, p person.Person) error {
	rec := record(p)
	rec[colID] = p.ID

	query, args, err := t.store.dialect.Insert(tablePersons).Rows(rec).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("person %d: %w", p.ID, storage.ErrAlreadyExists)
		}
		return err
	}
	return nil
}

func (t *personTx) UpdatePerson(ctx context.Context, p person.Person) error {
	query, args, err := t.store.dialect.Update(tablePersons).
		Set(record(p)).
		Where(goqu.C(colID).Eq(p.ID)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}
	return t.execAffectingOne(ctx, p.ID, query, args)
}

func (t *personTx) DeletePerson(ctx context.Context, id int) error {
	query, args, err := t.store.dialect.Delete(tablePersons).
		Where(goqu.C(colID).Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}
	return t.execAffectingOne(ctx, id, query, args)
}

func (t *personTx) execAffectingOne(ctx context.Context, id int, query string, args []interface{}) error {
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("person %d: %w", id, storage.ErrNotFound)
	}
	return nil
}
