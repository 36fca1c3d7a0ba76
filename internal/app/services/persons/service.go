package persons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/R3E-Network/person_service/internal/app/domain/person"
	"github.com/R3E-Network/person_service/internal/app/dto"
	"github.com/R3E-Network/person_service/internal/app/metrics"
	"github.com/R3E-Network/person_service/internal/app/storage"
	"github.com/R3E-Network/person_service/pkg/logger"
)

// ErrNotFound is returned by id-keyed operations on a missing record.
var ErrNotFound = fmt.Errorf("person: %w", storage.ErrNotFound)

// Service manages person records.
type Service struct {
	store storage.PersonStore
	log   *logger.Logger
	now   func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used by age queries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a person service.
func New(store storage.PersonStore, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("persons")
	}
	s := &Service{store: store, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stores p unless it is empty or its id is taken. The boolean reports
// whether a record was created.
func (s *Service) Add(ctx context.Context, p dto.Person) (added bool, err error) {
	defer s.observe("add", time.Now(), &err, func() string {
		if !added {
			return metrics.OutcomeRejected
		}
		return metrics.OutcomeOK
	})

	if p.IsZero() {
		return false, nil
	}
	entity := toEntity(p)

	err = s.store.InTx(ctx, func(ctx context.Context, tx storage.PersonTx) error {
		exists, err := tx.PersonExists(ctx, entity.ID)
		if err != nil {
			return err
		}
		if exists {
			return storage.ErrAlreadyExists
		}
		return tx.CreatePerson(ctx, entity)
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		s.log.WithField("person_id", entity.ID).Info("person id already taken")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("add person %d: %w", entity.ID, err)
	}

	s.log.WithFields(map[string]interface{}{
		"person_id": entity.ID,
		"kind":      entity.Kind(),
	}).Info("person added")
	return true, nil
}

// FindByID returns the record with the given id.
func (s *Service) FindByID(ctx context.Context, id int) (out dto.Person, err error) {
	defer s.observe("find_by_id", time.Now(), &err, nil)

	p, err := s.store.GetPerson(ctx, id)
	if err != nil {
		return dto.Person{}, s.wrap(err, id)
	}
	return toDTO(p), nil
}

// Remove deletes the record and returns it as it was before deletion.
func (s *Service) Remove(ctx context.Context, id int) (out dto.Person, err error) {
	defer s.observe("remove", time.Now(), &err, nil)

	var removed person.Person
	err = s.store.InTx(ctx, func(ctx context.Context, tx storage.PersonTx) error {
		p, err := tx.GetPerson(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeletePerson(ctx, id); err != nil {
			return err
		}
		removed = p
		return nil
	})
	if err != nil {
		return dto.Person{}, s.wrap(err, id)
	}

	s.log.WithField("person_id", id).Info("person removed")
	return toDTO(removed), nil
}

// UpdateName replaces the name and keeps everything else.
func (s *Service) UpdateName(ctx context.Context, id int, name string) (out dto.Person, err error) {
	defer s.observe("update_name", time.Now(), &err, nil)

	updated, err := s.modify(ctx, id, func(p *person.Person) { p.Name = name })
	if err != nil {
		return dto.Person{}, err
	}
	s.log.WithField("person_id", id).Info("person name updated")
	return toDTO(updated), nil
}

// UpdateAddress replaces all address fields and keeps everything else.
func (s *Service) UpdateAddress(ctx context.Context, id int, addr dto.Address) (out dto.Person, err error) {
	defer s.observe("update_address", time.Now(), &err, nil)

	updated, err := s.modify(ctx, id, func(p *person.Person) { p.Address = addressToEntity(addr) })
	if err != nil {
		return dto.Person{}, err
	}
	s.log.WithFields(map[string]interface{}{
		"person_id": id,
		"city":      addr.City,
	}).Info("person address updated")
	return toDTO(updated), nil
}

// FindByCity returns every record located in city.
func (s *Service) FindByCity(ctx context.Context, city string) (out []dto.Person, err error) {
	defer s.observe("find_by_city", time.Now(), &err, nil)
	return s.list(s.store.ListPersonsByCity(ctx, city))
}

// FindByName returns every record with exactly this name.
func (s *Service) FindByName(ctx context.Context, name string) (out []dto.Person, err error) {
	defer s.observe("find_by_name", time.Now(), &err, nil)
	return s.list(s.store.ListPersonsByName(ctx, name))
}

// FindByAgeRange returns records born between maxAge and minAge years ago,
// both bounds inclusive.
func (s *Service) FindByAgeRange(ctx context.Context, minAge, maxAge int) (out []dto.Person, err error) {
	defer s.observe("find_by_age_range", time.Now(), &err, nil)
	from, to := person.BirthDateRange(s.now(), minAge, maxAge)
	return s.list(s.store.ListPersonsByBirthDate(ctx, from, to))
}

// FindEmployeesBySalary returns employees earning within [min, max].
func (s *Service) FindEmployeesBySalary(ctx context.Context, min, max int) (out []dto.Person, err error) {
	defer s.observe("find_employees_by_salary", time.Now(), &err, nil)
	return s.list(s.store.ListEmployeesBySalary(ctx, min, max))
}

// FindChildren returns every child record.
func (s *Service) FindChildren(ctx context.Context) (out []dto.Person, err error) {
	defer s.observe("find_children", time.Now(), &err, nil)
	return s.list(s.store.ListChildren(ctx))
}

// CityPopulation counts records per city. Cities without records are absent.
func (s *Service) CityPopulation(ctx context.Context) (out []dto.CityPopulation, err error) {
	defer s.observe("city_population", time.Now(), &err, nil)

	list, err := s.store.CityPopulation(ctx)
	if err != nil {
		return nil, err
	}
	return populationToDTO(list), nil
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) modify(ctx context.Context, id int, apply func(*person.Person)) (person.Person, error) {
	var updated person.Person
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.PersonTx) error {
		p, err := tx.GetPerson(ctx, id)
		if err != nil {
			return err
		}
		apply(&p)
		if err := tx.UpdatePerson(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return person.Person{}, s.wrap(err, id)
	}
	return updated, nil
}

func (s *Service) list(list []person.Person, err error) ([]dto.Person, error) {
	if err != nil {
		return nil, err
	}
	return toDTOs(list), nil
}

func (s *Service) wrap(err error, id int) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return err
}

func (s *Service) observe(operation string, start time.Time, errp *error, outcome func() string) {
	result := metrics.OutcomeOK
	switch {
	case *errp != nil && errors.Is(*errp, storage.ErrNotFound):
		result = metrics.OutcomeNotFound
	case *errp != nil:
		result = metrics.OutcomeError
		s.log.WithError(*errp).WithField("operation", operation).Warn("person operation failed")
	case outcome != nil:
		result = outcome()
	}
	metrics.RecordOperation(operation, result, time.Since(start))
}
