package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/R3E-Network/person_service/internal/app/domain/person"
	"github.com/R3E-Network/person_service/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu      sync.RWMutex
	persons map[int]person.Person
}

var _ storage.PersonStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{persons: make(map[int]person.Person)}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// InTx holds the write lock for the whole of fn. Writes are staged and only
// applied when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.PersonTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, staged: make(map[int]*person.Person)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, p := range tx.staged {
		if p == nil {
			delete(s.persons, id)
			continue
		}
		s.persons[id] = *p
	}
	return nil
}

// PersonReader implementation ------------------------------------------------

func (s *Store) GetPerson(_ context.Context, id int) (person.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.persons[id]
	if !ok {
		return person.Person{}, fmt.Errorf("person %d: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ListPersonsByCity(_ context.Context, city string) ([]person.Person, error) {
	return s.filter(func(p person.Person) bool { return p.Address.City == city }), nil
}

func (s *Store) ListPersonsByName(_ context.Context, name string) ([]person.Person, error) {
	return s.filter(func(p person.Person) bool { return p.Name == name }), nil
}

func (s *Store) ListPersonsByBirthDate(_ context.Context, from, to time.Time) ([]person.Person, error) {
	from, to = person.Date(from), person.Date(to)
	return s.filter(func(p person.Person) bool {
		d := person.Date(p.BirthDate)
		return !d.Before(from) && !d.After(to)
	}), nil
}

func (s *Store) ListEmployeesBySalary(_ context.Context, min, max int) ([]person.Person, error) {
	return s.filter(func(p person.Person) bool {
		emp, ok := p.Variant.(person.Employee)
		return ok && emp.Salary >= min && emp.Salary <= max
	}), nil
}

func (s *Store) ListChildren(_ context.Context) ([]person.Person, error) {
	return s.filter(func(p person.Person) bool {
		return p.Kind() == person.KindChild
	}), nil
}

func (s *Store) CityPopulation(_ context.Context) ([]person.CityPopulation, error) {
	s.mu.RLock()
	counts := make(map[string]int)
	for _, p := range s.persons {
		counts[p.Address.City]++
	}
	s.mu.RUnlock()

	result := make([]person.CityPopulation, 0, len(counts))
	for city, n := range counts {
		result = append(result, person.CityPopulation{City: city, Population: n})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].City < result[j].City })
	return result, nil
}

func (s *Store) filter(keep func(person.Person) bool) []person.Person {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]person.Person, 0)
	for _, p := range s.persons {
		if keep(p) {
			result = append(result, p)
		}
	}
	sortByID(result)
	return result
}

func sortByID(items []person.Person) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}

// PersonTx implementation ----------------------------------------------------

// memTx overlays staged writes on the committed map. A nil entry marks a
// deletion. The owning Store's write lock is held for its whole lifetime.
type memTx struct {
	store  *Store
	staged map[int]*person.Person
}

func (t *memTx) lookup(id int) (person.Person, bool) {
	if p, ok := t.staged[id]; ok {
		if p == nil {
			return person.Person{}, false
		}
		return *p, true
	}
	p, ok := t.store.persons[id]
	return p, ok
}

func (t *memTx) PersonExists(_ context.Context, id int) (bool, error) {
	_, ok := t.lookup(id)
	return ok, nil
}

func (t *memTx) GetPerson(_ context.Context, id int) (person.Person, error) {
	p, ok := t.lookup(id)
	if !ok {
		return person.Person{}, fmt.Errorf("person %d: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (t *memTx) CreatePerson(_ context.Context, p person.Person) error {
	if _, exists := t.lookup(p.ID); exists {
		return fmt.Errorf("person %d: %w", p.ID, storage.ErrAlreadyExists)
	}
	p.BirthDate = person.Date(p.BirthDate)
	t.staged[p.ID] = &p
	return nil
}

func (t *memTx) UpdatePerson(_ context.Context, p person.Person) error {
	if _, ok := t.lookup(p.ID); !ok {
		return fmt.Errorf("person %d: %w", p.ID, storage.ErrNotFound)
	}
	p.BirthDate = person.Date(p.BirthDate)
	t.staged[p.ID] = &p
	return nil
}

func (t *memTx) DeletePerson(_ context.Context, id int) error {
	if _, ok := t.lookup(id); !ok {
		return fmt.Errorf("person %d: %w", id, storage.ErrNotFound)
	}
	t.staged[id] = nil
	return nil
}
