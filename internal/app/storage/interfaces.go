package storage

import (
	"context"
	"errors"
	"time"

	"github.com/R3E-Network/person_service/internal/app/domain/person"
)

var (
	// ErrNotFound is returned when no record matches the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when creating a record whose id is taken.
	ErrAlreadyExists = errors.New("record already exists")
)

// PersonReader answers the read-only person queries. Result slices are never
// nil and are ordered by id.
type PersonReader interface {
	GetPerson(ctx context.Context, id int) (person.Person, error)
	ListPersonsByCity(ctx context.Context, city string) ([]person.Person, error)
	ListPersonsByName(ctx context.Context, name string) ([]person.Person, error)
	// ListPersonsByBirthDate returns records born within [from, to] inclusive.
	ListPersonsByBirthDate(ctx context.Context, from, to time.Time) ([]person.Person, error)
	ListEmployeesBySalary(ctx context.Context, min, max int) ([]person.Person, error)
	ListChildren(ctx context.Context) ([]person.Person, error)
	CityPopulation(ctx context.Context) ([]person.CityPopulation, error)
}

// PersonTx is the write side, only reachable inside PersonStore.InTx.
type PersonTx interface {
	PersonExists(ctx context.Context, id int) (bool, error)
	// GetPerson reads a record for update.
	GetPerson(ctx context.Context, id int) (person.Person, error)
	CreatePerson(ctx context.Context, p person.Person) error
	UpdatePerson(ctx context.Context, p person.Person) error
	DeletePerson(ctx context.Context, id int) error
}

// PersonStore persists person records.
type PersonStore interface {
	PersonReader

	// InTx runs fn in a transaction. The transaction commits when fn returns
	// nil and rolls back when fn returns an error or panics.
	InTx(ctx context.Context, fn func(ctx context.Context, tx PersonTx) error) error

	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error
}
