package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"herdbook/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		buck, err := tx.CreateAnimal(domain.Animal{Code: "R-1", SpeciesType: "rabbit", Gender: domain.GenderMale})
		if err != nil {
			return err
		}
		doe, err := tx.CreateAnimal(domain.Animal{Code: "R-2", SpeciesType: "rabbit", Gender: domain.GenderFemale})
		if err != nil {
			return err
		}
		_, err = tx.CreateBreedingEvent(domain.BreedingEvent{EventCode: "BE-1", MaleID: buck.ID, FemaleID: doe.ID, SpeciesType: "rabbit"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if got := len(reloaded.ListAnimals(domain.AnimalFilter{})); got != 2 {
		t.Fatalf("expected 2 animals, got %d", got)
	}
	if got := len(reloaded.ListBreedingEvents(domain.BreedingEventFilter{})); got != 1 {
		t.Fatalf("expected 1 event, got %d", got)
	}
	var next domain.Animal
	if _, err := reloaded.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		next, err = tx.CreateAnimal(domain.Animal{Code: "R-3", SpeciesType: "rabbit", Gender: domain.GenderFemale})
		return err
	}); err != nil {
		t.Fatalf("create after reload: %v", err)
	}
	if next.ID != 3 {
		t.Fatalf("expected sequence to continue at 3, got %d", next.ID)
	}
}

func TestSQLiteStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.DB().Exec(`INSERT INTO state(bucket,payload) VALUES('animals', '{broken')`); err != nil {
		t.Fatalf("seed broken payload: %v", err)
	}
	_ = store.Close()
	if _, err := NewStore(path, nil); err == nil || !strings.Contains(err.Error(), "decode animals") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestSQLiteStoreFailedTransactionSkipsPersist(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateAnimal(domain.Animal{Code: "", SpeciesType: "rabbit", Gender: domain.GenderMale})
		return err
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var rows int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected nothing persisted, got %d rows", rows)
	}
}
