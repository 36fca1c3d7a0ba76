package app

import (
	"context"
	"fmt"

	"github.com/R3E-Network/person_service/internal/app/services/persons"
	"github.com/R3E-Network/person_service/internal/app/storage"
	"github.com/R3E-Network/person_service/internal/app/storage/memory"
	"github.com/R3E-Network/person_service/internal/app/system"
	"github.com/R3E-Network/person_service/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Persons storage.PersonStore
}

// Option customises application construction.
type Option func(*options)

type options struct {
	seed        bool
	personsOpts []persons.Option
}

// WithSeed inserts the sample records when the application starts.
func WithSeed() Option {
	return func(o *options) { o.seed = true }
}

// WithPersonsOptions forwards options to the person service.
func WithPersonsOptions(opts ...persons.Option) Option {
	return func(o *options) { o.personsOpts = append(o.personsOpts, opts...) }
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Persons *persons.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, log *logger.Logger, opts ...Option) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if stores.Persons == nil {
		stores.Persons = memory.New()
	}

	manager := system.NewManager()
	personService := persons.New(stores.Persons, log.Named("persons"), o.personsOpts...)

	services := []system.Service{system.NoopService{ServiceName: "persons"}}
	if o.seed {
		services = append(services, system.Func{
			ServiceName: "persons-seed",
			OnStart: func(ctx context.Context) error {
				_, err := personService.Seed(ctx, persons.SampleRecords()...)
				return err
			},
		})
	}
	for _, svc := range services {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager: manager,
		log:     log,
		Persons: personService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
