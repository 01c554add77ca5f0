package core

import (
	"context"
	"time"

	"herdbook/internal/infra/persistence/memory"
	"herdbook/internal/species"
)

// Service exposes the genealogy, matching, prediction and breeding lifecycle
// operations over a persistent store.
type Service struct {
	store     PersistentStore
	clock     Clock
	logger    Logger
	audit     AuditRecorder
	metrics   MetricsRecorder
	tracer    Tracer
	random    RandomSource
	species   *species.Catalog
	archive   *LitterArchive
	relations *RelationshipCache
	offspring *OffspringGenerator
	births    keyedMutex
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used for audit timestamps.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditRecorder sets the recipient of audit entries for mutations.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer sets the span tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithRandomSource sets the source used for offspring draws.
func WithRandomSource(random RandomSource) Option {
	return func(s *Service) {
		if random != nil {
			s.random = random
		}
	}
}

// WithSpecies sets the species catalog.
func WithSpecies(catalog *species.Catalog) Option {
	return func(s *Service) {
		if catalog != nil {
			s.species = catalog
		}
	}
}

// WithLitterArchive enables archiving of litter reports after births.
func WithLitterArchive(archive *LitterArchive) Option {
	return func(s *Service) {
		s.archive = archive
	}
}

// WithRelationshipCache enables memoization of pair classifications.
func WithRelationshipCache(cache *RelationshipCache) Option {
	return func(s *Service) {
		s.relations = cache
	}
}

// NewService constructs a service backed by the supplied store. When no clock
// is configured the store's NowFunc is used if it exposes one.
func NewService(store PersistentStore, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.clock == nil {
		svc.clock = storeClock(store)
	}
	if svc.random == nil {
		svc.random = NewRandomSource(0)
	}
	if svc.species == nil {
		svc.species = species.Default()
	}
	svc.offspring = NewOffspringGenerator(svc.random, svc.species)
	return svc
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying store.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Species returns the active species catalog.
func (s *Service) Species() *species.Catalog {
	return s.species
}

// LitterArchive returns the configured archive, or nil when archiving is off.
func (s *Service) LitterArchive() *LitterArchive {
	return s.archive
}

func storeClock(store PersistentStore) Clock {
	if nower, ok := store.(interface{ NowFunc() func() time.Time }); ok {
		if fn := nower.NowFunc(); fn != nil {
			return ClockFunc(fn)
		}
	}
	return ClockFunc(func() time.Time { return time.Now().UTC() })
}

func (s *Service) now() time.Time {
	return s.clock.Now()
}

// run wraps an operation with tracing, metrics, logging and auditing. fn
// returns the id of the affected entity, or 0 when none applies.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context) (int64, error)) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	id, err := fn(ctx)
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "entity_id", id, "error", err)
		s.recordAuditError(ctx, op, id, duration, err)
		return err
	}
	s.logger.Debug("operation completed", "operation", op, "entity_id", id, "duration", duration)
	s.recordAuditSuccess(ctx, op, id, duration)
	return nil
}

type auditTarget struct {
	entity EntityType
	action Action
}

// auditedOperations lists the mutations that produce audit entries.
var auditedOperations = map[string]auditTarget{
	"create_animal":                {EntityAnimal, ActionCreate},
	"update_animal":                {EntityAnimal, ActionUpdate},
	"delete_animal":                {EntityAnimal, ActionDelete},
	"create_breeding_event":        {EntityBreedingEvent, ActionCreate},
	"update_breeding_event_status": {EntityBreedingEvent, ActionUpdate},
	"record_birth":                 {EntityBreedingEvent, ActionUpdate},
	"delete_breeding_event":        {EntityBreedingEvent, ActionDelete},
}

func (s *Service) recordAuditSuccess(ctx context.Context, op string, entityID int64, duration time.Duration) {
	s.recordAudit(ctx, op, entityID, duration, nil)
}

func (s *Service) recordAuditError(ctx context.Context, op string, entityID int64, duration time.Duration, err error) {
	s.recordAudit(ctx, op, entityID, duration, err)
}

func (s *Service) recordAudit(ctx context.Context, op string, entityID int64, duration time.Duration, err error) {
	target, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    target.entity,
		Action:    target.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}
