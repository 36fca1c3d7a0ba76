// Package testutil provides common testing utilities and mock implementations.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/R3E-Network/person_service/internal/app/domain/person"
	"github.com/R3E-Network/person_service/internal/app/storage"
)

// FaultyStore wraps a PersonStore and fails selected calls with injected
// errors. Nil errors pass the call through.
type FaultyStore struct {
	storage.PersonStore

	mu      sync.RWMutex
	txErr   error
	readErr error
	pingErr error
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner storage.PersonStore) *FaultyStore {
	return &FaultyStore{PersonStore: inner}
}

// FailTx makes InTx return err without running the callback.
func (f *FaultyStore) FailTx(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txErr = err
}

// FailReads makes every read query return err.
func (f *FaultyStore) FailReads(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

// FailPing makes Ping return err.
func (f *FaultyStore) FailPing(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

func (f *FaultyStore) errs() (tx, read, ping error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.txErr, f.readErr, f.pingErr
}

func (f *FaultyStore) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.PersonTx) error) error {
	if err, _, _ := f.errs(); err != nil {
		return err
	}
	return f.PersonStore.InTx(ctx, fn)
}

func (f *FaultyStore) Ping(ctx context.Context) error {
	if _, _, err := f.errs(); err != nil {
		return err
	}
	return f.PersonStore.Ping(ctx)
}

func (f *FaultyStore) GetPerson(ctx context.Context, id int) (person.Person, error) {
	if _, err, _ := f.errs(); err != nil {
		return person.Person{}, err
	}
	return f.PersonStore.GetPerson(ctx, id)
}

func (f *FaultyStore) ListPersonsByCity(ctx context.Context, city string) ([]person.Person, error) {
	if _, err, _ := f.errs(); err != nil {
		return nil, err
	}
	return f.PersonStore.ListPersonsByCity(ctx, city)
}

func (f *FaultyStore) ListPersonsByName(ctx context.Context, name string) ([]person.Person, error) {
	if _, err, _ := f.errs(); err != nil {
		return nil, err
	}
	return f.PersonStore.ListPersonsByName(ctx, name)
}

func (f *FaultyStore) ListPersonsByBirthDate(ctx context.Context, from, to time.Time) ([]person.Person, error) {
	if _, err, _ := f.errs(); err != nil {
		return nil, err
	}
	return f.PersonStore.ListPersonsByBirthDate(ctx, from, to)
}

func (f *FaultyStore) ListEmployeesBySalary(ctx context.Context, min, max int) ([]person.Person, error) {
	if _, err, _ := f.errs(); err != nil {
		return nil, err
	}
	return f.PersonStore.ListEmployeesBySalary(ctx, min, max)
}

func (f *FaultyStore) ListChildren(ctx context.Context) ([]person.Person, error) {
	if _, err, _ := f.errs(); err != nil {
		return nil, err
	}
	return f.PersonStore.ListChildren(ctx)
}

func (f *FaultyStore) CityPopulation(ctx context.Context) ([]person.CityPopulation, error) {
	if _, err, _ := f.errs(); err != nil {
		return nil, err
	}
	return f.PersonStore.CityPopulation(ctx)
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
