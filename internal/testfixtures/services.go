package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/persistence"
	"github.com/example/conference-scheduler/internal/persistence/memory"
	"github.com/example/conference-scheduler/internal/repository"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// ScheduleServiceDeps captures dependencies for constructing a schedule service.
type ScheduleServiceDeps struct {
	Schedules         application.ScheduleRepository
	Hooks             application.Hooks
	IDGenerator       func() string
	Now               func() time.Time
	Logger            *slog.Logger
	GenerationBudget  time.Duration
	PublishedCacheTTL time.Duration
}

// NewScheduleService builds a schedule service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewScheduleService(deps ScheduleServiceDeps) *application.ScheduleService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewScheduleServiceWithOptions(
		deps.Schedules,
		deps.Hooks,
		idGen,
		now,
		application.ScheduleServiceOptions{
			Logger:            deps.Logger,
			GenerationBudget:  deps.GenerationBudget,
			PublishedCacheTTL: deps.PublishedCacheTTL,
		},
	)
}

// ConferenceServiceDeps captures dependencies for constructing a conference service.
type ConferenceServiceDeps struct {
	Conferences application.ConferenceRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewConferenceService builds a conference service using the supplied dependencies.
func (f *ServiceFactory) NewConferenceService(deps ConferenceServiceDeps) *application.ConferenceService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewConferenceServiceWithLogger(
		deps.Conferences,
		idGen,
		now,
		deps.Logger,
	)
}

// Stack is a fully wired service layer over one store.
type Stack struct {
	Repository  *repository.Repository
	Conferences *application.ConferenceService
	Schedules   *application.ScheduleService
}

// NewStack wires both services over store with the factory's clock and ids.
func (f *ServiceFactory) NewStack(store persistence.Store, hooks application.Hooks) Stack {
	repo := repository.New(store)
	return Stack{
		Repository:  repo,
		Conferences: f.NewConferenceService(ConferenceServiceDeps{Conferences: repo}),
		Schedules:   f.NewScheduleService(ScheduleServiceDeps{Schedules: repo, Hooks: hooks}),
	}
}

// NewMemoryStack seeds a fresh memory store with snapshot and wires services over it.
func (f *ServiceFactory) NewMemoryStack(snapshot memory.Snapshot, hooks application.Hooks) (Stack, *memory.Storage) {
	storage := memory.New()
	storage.Seed(snapshot)
	return f.NewStack(storage, hooks), storage
}
