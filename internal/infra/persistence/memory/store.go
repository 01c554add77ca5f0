// Package memory provides an in-memory implementation of the herd book
// persistence store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"herdbook/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Animal aliases domain.Animal for in-memory persistence operations.
	Animal = domain.Animal
	// BreedingEvent aliases domain.BreedingEvent.
	BreedingEvent = domain.BreedingEvent
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	animals   map[int64]Animal
	events    map[int64]BreedingEvent
	animalSeq int64
	eventSeq  int64
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Animals   map[int64]Animal        `json:"animals"`
	Events    map[int64]BreedingEvent `json:"breeding_events"`
	AnimalSeq int64                   `json:"animal_seq"`
	EventSeq  int64                   `json:"event_seq"`
}

func newMemoryState() memoryState {
	return memoryState{
		animals: make(map[int64]Animal),
		events:  make(map[int64]BreedingEvent),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Animals:   make(map[int64]Animal, len(state.animals)),
		Events:    make(map[int64]BreedingEvent, len(state.events)),
		AnimalSeq: state.animalSeq,
		EventSeq:  state.eventSeq,
	}
	for k, v := range state.animals {
		s.Animals[k] = cloneAnimal(v)
	}
	for k, v := range state.events {
		s.Events[k] = cloneEvent(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Animals {
		state.animals[k] = cloneAnimal(v)
	}
	for k, v := range s.Events {
		state.events[k] = cloneEvent(v)
	}
	state.animalSeq = s.AnimalSeq
	state.eventSeq = s.EventSeq
	return state
}

// migrateSnapshot normalises snapshots written by older releases: missing
// maps, keys that disagree with record ids, sequences lagging behind stored
// ids, and empty statuses.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Animals == nil {
		snapshot.Animals = map[int64]Animal{}
	}
	if snapshot.Events == nil {
		snapshot.Events = map[int64]BreedingEvent{}
	}
	for key, animal := range snapshot.Animals {
		if animal.ID != key {
			animal.ID = key
		}
		if animal.Status == "" {
			animal.Status = domain.AnimalStatusActive
		}
		if animal.Generation <= 0 {
			animal.Generation = 1
		}
		if animal.Ancestry == nil {
			animal.Ancestry = []string{}
		}
		snapshot.Animals[key] = animal
		if key > snapshot.AnimalSeq {
			snapshot.AnimalSeq = key
		}
	}
	for key, event := range snapshot.Events {
		if event.ID != key {
			event.ID = key
		}
		if event.Status == "" {
			event.Status = domain.EventStatusPending
		}
		if event.OffspringIDs == nil {
			event.OffspringIDs = []int64{}
		}
		snapshot.Events[key] = event
		if key > snapshot.EventSeq {
			snapshot.EventSeq = key
		}
	}
	return snapshot
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.animals {
		cloned.animals[k] = cloneAnimal(v)
	}
	for k, v := range s.events {
		cloned.events[k] = cloneEvent(v)
	}
	cloned.animalSeq = s.animalSeq
	cloned.eventSeq = s.eventSeq
	return cloned
}

func cloneAnimal(a Animal) Animal {
	cp := a
	cp.Ancestry = append([]string{}, a.Ancestry...)
	cp.BreedID = cloneInt64Ptr(a.BreedID)
	cp.SecondaryBreedID = cloneInt64Ptr(a.SecondaryBreedID)
	cp.ParentMaleID = cloneInt64Ptr(a.ParentMaleID)
	cp.ParentFemaleID = cloneInt64Ptr(a.ParentFemaleID)
	cp.DateOfBirth = cloneTimePtr(a.DateOfBirth)
	cp.Health = cloneIntPtr(a.Health)
	cp.Fertility = cloneIntPtr(a.Fertility)
	cp.GrowthRate = cloneIntPtr(a.GrowthRate)
	cp.LitterSize = cloneIntPtr(a.LitterSize)
	if a.Weight != nil {
		w := *a.Weight
		cp.Weight = &w
	}
	return cp
}

func cloneEvent(e BreedingEvent) BreedingEvent {
	cp := e
	cp.OffspringIDs = append([]int64{}, e.OffspringIDs...)
	cp.NestBoxDate = cloneTimePtr(e.NestBoxDate)
	cp.ExpectedBirthDate = cloneTimePtr(e.ExpectedBirthDate)
	cp.ActualBirthDate = cloneTimePtr(e.ActualBirthDate)
	cp.WeanDate = cloneTimePtr(e.WeanDate)
	cp.GeneticCompatibilityScore = cloneIntPtr(e.GeneticCompatibilityScore)
	cp.PredictedLitterSize = cloneIntPtr(e.PredictedLitterSize)
	cp.PredictedOffspringHealth = cloneIntPtr(e.PredictedOffspringHealth)
	cp.PredictedROI = cloneIntPtr(e.PredictedROI)
	cp.ActualOffspringCount = cloneIntPtr(e.ActualOffspringCount)
	cp.ActualROI = cloneIntPtr(e.ActualROI)
	return cp
}

func cloneIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt64Ptr(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTimePtr(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Store provides an in-memory transactional store for the herd book domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the store clock. Intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListAnimals returns all animals within the snapshot ordered by id.
func (v transactionView) ListAnimals() []Animal {
	return sortedAnimals(v.state, domain.AnimalFilter{})
}

// FindAnimal retrieves an animal by id from the snapshot.
func (v transactionView) FindAnimal(id int64) (Animal, bool) {
	a, ok := v.state.animals[id]
	if !ok {
		return Animal{}, false
	}
	return cloneAnimal(a), true
}

// ListBreedingEvents returns all breeding events ordered by id.
func (v transactionView) ListBreedingEvents() []BreedingEvent {
	return sortedEvents(v.state, domain.BreedingEventFilter{})
}

// FindBreedingEvent retrieves a breeding event by id from the snapshot.
func (v transactionView) FindBreedingEvent(id int64) (BreedingEvent, bool) {
	e, ok := v.state.events[id]
	if !ok {
		return BreedingEvent{}, false
	}
	return cloneEvent(e), true
}

func sortedAnimals(state *memoryState, filter domain.AnimalFilter) []Animal {
	out := make([]Animal, 0, len(state.animals))
	for _, a := range state.animals {
		if filter.Matches(a) {
			out = append(out, cloneAnimal(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedEvents(state *memoryState, filter domain.BreedingEventFilter) []BreedingEvent {
	out := make([]BreedingEvent, 0, len(state.events))
	for _, e := range state.events {
		if filter.Matches(e) {
			out = append(out, cloneEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Writers are serialized; the copy is committed only when fn succeeds and no
// blocking rule violation is reported.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindAnimal exposes animal lookup within the transaction scope.
func (tx *transaction) FindAnimal(id int64) (Animal, bool) {
	a, ok := tx.state.animals[id]
	if !ok {
		return Animal{}, false
	}
	return cloneAnimal(a), true
}

// FindBreedingEvent exposes event lookup within the transaction scope.
func (tx *transaction) FindBreedingEvent(id int64) (BreedingEvent, bool) {
	e, ok := tx.state.events[id]
	if !ok {
		return BreedingEvent{}, false
	}
	return cloneEvent(e), true
}

// CreateAnimal assigns the next id and stores the animal. Animal codes are
// unique per species type.
func (tx *transaction) CreateAnimal(a Animal) (Animal, error) {
	if strings.TrimSpace(a.Code) == "" {
		return Animal{}, domain.ErrValidation{Field: "animal_code", Reason: "required"}
	}
	if !a.Gender.Valid() {
		return Animal{}, domain.ErrValidation{Field: "gender", Reason: fmt.Sprintf("unsupported value %q", a.Gender)}
	}
	for _, existing := range tx.state.animals {
		if existing.SpeciesType == a.SpeciesType && existing.Code == a.Code {
			return Animal{}, domain.ErrConflict{Entity: domain.EntityAnimal, ID: existing.ID, Reason: fmt.Sprintf("animal code %s already registered for %s", a.Code, a.SpeciesType)}
		}
	}
	tx.state.animalSeq++
	a.ID = tx.state.animalSeq
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	if a.Status == "" {
		a.Status = domain.AnimalStatusActive
	}
	if a.Generation <= 0 {
		a.Generation = 1
	}
	if a.Ancestry == nil {
		a.Ancestry = []string{}
	}
	tx.state.animals[a.ID] = cloneAnimal(a)
	tx.recordChange(Change{Entity: domain.EntityAnimal, Action: domain.ActionCreate, After: cloneAnimal(a)})
	return cloneAnimal(a), nil
}

// UpdateAnimal mutates an existing animal. The id and creation time are preserved.
func (tx *transaction) UpdateAnimal(id int64, mutator func(*Animal) error) (Animal, error) {
	current, ok := tx.state.animals[id]
	if !ok {
		return Animal{}, domain.ErrNotFound{Entity: domain.EntityAnimal, ID: id}
	}
	before := cloneAnimal(current)
	updated := cloneAnimal(current)
	if err := mutator(&updated); err != nil {
		return Animal{}, err
	}
	updated.ID = id
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = tx.now
	tx.state.animals[id] = cloneAnimal(updated)
	tx.recordChange(Change{Entity: domain.EntityAnimal, Action: domain.ActionUpdate, Before: before, After: cloneAnimal(updated)})
	return cloneAnimal(updated), nil
}

// DeleteAnimal hard-deletes unreferenced animals and soft-deletes (status
// inactive) animals that are recorded as a parent or as a breeding participant.
func (tx *transaction) DeleteAnimal(id int64) (bool, error) {
	current, ok := tx.state.animals[id]
	if !ok {
		return false, domain.ErrNotFound{Entity: domain.EntityAnimal, ID: id}
	}
	if tx.animalReferenced(id) {
		if current.Status == domain.AnimalStatusInactive || current.Status == domain.AnimalStatusDeceased {
			return true, nil
		}
		_, err := tx.UpdateAnimal(id, func(a *Animal) error {
			a.Status = domain.AnimalStatusInactive
			return nil
		})
		return true, err
	}
	delete(tx.state.animals, id)
	tx.recordChange(Change{Entity: domain.EntityAnimal, Action: domain.ActionDelete, Before: cloneAnimal(current)})
	return false, nil
}

func (tx *transaction) animalReferenced(id int64) bool {
	for _, other := range tx.state.animals {
		if other.ID != id && other.HasParent(id) {
			return true
		}
	}
	for _, event := range tx.state.events {
		if event.MaleID == id || event.FemaleID == id {
			return true
		}
	}
	return false
}

// CreateBreedingEvent assigns the next id and stores the event.
func (tx *transaction) CreateBreedingEvent(e BreedingEvent) (BreedingEvent, error) {
	if _, ok := tx.state.animals[e.MaleID]; !ok {
		return BreedingEvent{}, domain.ErrNotFound{Entity: domain.EntityAnimal, ID: e.MaleID}
	}
	if _, ok := tx.state.animals[e.FemaleID]; !ok {
		return BreedingEvent{}, domain.ErrNotFound{Entity: domain.EntityAnimal, ID: e.FemaleID}
	}
	tx.state.eventSeq++
	e.ID = tx.state.eventSeq
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	if e.Status == "" {
		e.Status = domain.EventStatusPending
	}
	if e.OffspringIDs == nil {
		e.OffspringIDs = []int64{}
	}
	tx.state.events[e.ID] = cloneEvent(e)
	tx.recordChange(Change{Entity: domain.EntityBreedingEvent, Action: domain.ActionCreate, After: cloneEvent(e)})
	return cloneEvent(e), nil
}

// UpdateBreedingEvent mutates an existing breeding event.
func (tx *transaction) UpdateBreedingEvent(id int64, mutator func(*BreedingEvent) error) (BreedingEvent, error) {
	current, ok := tx.state.events[id]
	if !ok {
		return BreedingEvent{}, domain.ErrNotFound{Entity: domain.EntityBreedingEvent, ID: id}
	}
	before := cloneEvent(current)
	updated := cloneEvent(current)
	if err := mutator(&updated); err != nil {
		return BreedingEvent{}, err
	}
	updated.ID = id
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = tx.now
	tx.state.events[id] = cloneEvent(updated)
	tx.recordChange(Change{Entity: domain.EntityBreedingEvent, Action: domain.ActionUpdate, Before: before, After: cloneEvent(updated)})
	return cloneEvent(updated), nil
}

// DeleteBreedingEvent removes an event unless offspring have been recorded for it.
func (tx *transaction) DeleteBreedingEvent(id int64) error {
	current, ok := tx.state.events[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityBreedingEvent, ID: id}
	}
	if current.HasRecordedOffspring() {
		return domain.ErrConflict{Entity: domain.EntityBreedingEvent, ID: id, Reason: "offspring already recorded"}
	}
	delete(tx.state.events, id)
	tx.recordChange(Change{Entity: domain.EntityBreedingEvent, Action: domain.ActionDelete, Before: cloneEvent(current)})
	return nil
}

// GetAnimal returns an animal by id.
func (s *Store) GetAnimal(id int64) (Animal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.animals[id]
	if !ok {
		return Animal{}, false
	}
	return cloneAnimal(a), true
}

// ListAnimals returns animals matching filter ordered by id.
func (s *Store) ListAnimals(filter domain.AnimalFilter) []Animal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedAnimals(&s.state, filter)
}

// GetBreedingEvent returns a breeding event by id.
func (s *Store) GetBreedingEvent(id int64) (BreedingEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.events[id]
	if !ok {
		return BreedingEvent{}, false
	}
	return cloneEvent(e), true
}

// ListBreedingEvents returns events matching filter ordered by id.
func (s *Store) ListBreedingEvents(filter domain.BreedingEventFilter) []BreedingEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedEvents(&s.state, filter)
}
