// Package memory es el store en memoria (modo dev y tests).
//
// Todos los repos comparten un Store: un único mutex protege todas las
// entidades y WithinTx lo mantiene tomado durante toda la transacción, así
// que chequeo + escritura nunca se intercalan con otra transacción.
package memory

import (
	"context"
	"sync"

	"animal-shelter/internal/domain/activities"
	"animal-shelter/internal/domain/adoptions"
	"animal-shelter/internal/domain/animals"
	"animal-shelter/internal/domain/medical"
)

type Store struct {
	mu sync.RWMutex

	animals map[string]animals.Animal
	history map[string][]animals.HistoryEntry

	requests  map[string]adoptions.Request
	notes     map[string][]adoptions.Note
	adoptions map[string]adoptions.Adoption // por request_id

	activities  map[string]activities.Activity
	enrollments map[string]activities.Enrollment

	records map[string]medical.Record
}

func NewStore() *Store {
	return &Store{
		animals:     make(map[string]animals.Animal),
		history:     make(map[string][]animals.HistoryEntry),
		requests:    make(map[string]adoptions.Request),
		notes:       make(map[string][]adoptions.Note),
		adoptions:   make(map[string]adoptions.Adoption),
		activities:  make(map[string]activities.Activity),
		enrollments: make(map[string]activities.Enrollment),
		records:     make(map[string]medical.Record),
	}
}

// txn implementa animals.Tx, adoptions.Tx y activities.Tx sobre el Store.
// Cada escritura registra cómo deshacerse; si fn falla se aplican en orden inverso.
type txn struct {
	s    *Store
	undo []func()
}

func (t *txn) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *txn) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (s *Store) withinTx(ctx context.Context, fn func(t *txn) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txn{s: s}
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
	}()

	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

func limitOr(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > 200 {
		return 200
	}
	return limit
}
