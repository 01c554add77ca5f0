package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	FindAnimal(id int64) (Animal, bool)
	FindBreedingEvent(id int64) (BreedingEvent, bool)
	CreateAnimal(Animal) (Animal, error)
	UpdateAnimal(id int64, mutator func(*Animal) error) (Animal, error)
	// DeleteAnimal removes the animal, or marks it inactive when other
	// records still reference it. soft reports which of the two happened.
	DeleteAnimal(id int64) (soft bool, err error)
	CreateBreedingEvent(BreedingEvent) (BreedingEvent, error)
	UpdateBreedingEvent(id int64, mutator func(*BreedingEvent) error) (BreedingEvent, error)
	DeleteBreedingEvent(id int64) error
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListAnimals() []Animal
	FindAnimal(id int64) (Animal, bool)
	ListBreedingEvents() []BreedingEvent
	FindBreedingEvent(id int64) (BreedingEvent, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetAnimal(id int64) (Animal, bool)
	ListAnimals(filter AnimalFilter) []Animal
	GetBreedingEvent(id int64) (BreedingEvent, bool)
	ListBreedingEvents(filter BreedingEventFilter) []BreedingEvent
}
