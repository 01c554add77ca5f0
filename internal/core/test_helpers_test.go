package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"herdbook/internal/infra/persistence/memory"
	"herdbook/pkg/domain"
)

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// scriptedRandom replays fixed draws. Without a script Float64 returns 0.99
// (female for every species) and IntN returns the midpoint (no health offset).
type scriptedRandom struct {
	mu     sync.Mutex
	floats []float64
	ints   []int
	fi, ii int
}

func (r *scriptedRandom) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.floats) == 0 {
		return 0.99
	}
	v := r.floats[r.fi%len(r.floats)]
	r.fi++
	return v
}

func (r *scriptedRandom) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 {
		return n / 2
	}
	v := r.ints[r.ii%len(r.ints)]
	r.ii++
	if v >= n {
		v = n - 1
	}
	return v
}

type captureLogger struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
}

func (l *captureLogger) Debug(string, ...any) {}
func (l *captureLogger) Info(string, ...any)  {}

func (l *captureLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, msg)
}

func (l *captureLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func newTestStore() *memory.Store {
	store := memory.NewStore(NewDefaultRulesEngine())
	store.SetNowFunc(func() time.Time { return fixedNow })
	return store
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	base := []Option{WithRandomSource(&scriptedRandom{})}
	return NewService(newTestStore(), append(base, opts...)...)
}

func rabbit(code string, gender domain.Gender) Animal {
	return Animal{Code: code, SpeciesType: "rabbit", Breed: "Rex", Gender: gender}
}

func mustCreate(t *testing.T, svc *Service, a Animal) Animal {
	t.Helper()
	created, _, err := svc.CreateAnimal(context.Background(), a)
	if err != nil {
		t.Fatalf("create animal %s: %v", a.Code, err)
	}
	return created
}

func childOf(code string, gender domain.Gender, sire, dam Animal) Animal {
	a := rabbit(code, gender)
	a.ParentMaleID = int64Ptr(sire.ID)
	a.ParentFemaleID = int64Ptr(dam.ID)
	return a
}

// mapLookup is an id-indexed AnimalLookup for analyzer tests.
type mapLookup map[int64]Animal

func (m mapLookup) FindAnimal(id int64) (Animal, bool) {
	a, ok := m[id]
	return a, ok
}

func (m mapLookup) add(id, sire, dam int64, ancestry ...string) Animal {
	a := Animal{Base: domain.Base{ID: id}, Code: "A", Generation: 1, Ancestry: ancestry}
	if sire != 0 {
		a.ParentMaleID = int64Ptr(sire)
	}
	if dam != 0 {
		a.ParentFemaleID = int64Ptr(dam)
	}
	m[id] = a
	return a
}

func dateOf(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
