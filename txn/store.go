// Package txn gives a request exactly one lazily started database
// transaction, handed between the unit-of-work middleware and the handler
// through a single-slot store.
package txn

import (
	"context"
	"database/sql"
	"sync"
)

// State is a transaction lifecycle event.
type State int

const (
	// Nonexistent is recorded when a request starts with an empty store.
	Nonexistent State = iota
	// Started is recorded when a transaction begins.
	Started
	// Committed is recorded after a successful commit.
	Committed
	// RolledBack is recorded after a rollback.
	RolledBack
)

func (s State) String() string {
	switch s {
	case Nonexistent:
		return "nonexistent"
	case Started:
		return "started"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Recorder observes lifecycle events.
type Recorder interface {
	Record(State)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(State)

// Record calls f.
func (f RecorderFunc) Record(state State) {
	f(state)
}

// Discard drops every event.
var Discard Recorder = RecorderFunc(func(State) {})

// Log keeps events in order. It is safe for concurrent use.
type Log struct {
	mu     sync.Mutex
	states []State
}

// Record appends state.
func (l *Log) Record(state State) {
	l.mu.Lock()
	l.states = append(l.states, state)
	l.mu.Unlock()
}

// States returns a copy of the recorded events.
func (l *Log) States() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

// Reset forgets every recorded event.
func (l *Log) Reset() {
	l.mu.Lock()
	l.states = nil
	l.mu.Unlock()
}

// Multi fans events out to several recorders.
func Multi(recorders ...Recorder) Recorder {
	return RecorderFunc(func(state State) {
		for _, r := range recorders {
			if r != nil {
				r.Record(state)
			}
		}
	})
}

// Beginner starts write transactions; *db.Main satisfies it.
type Beginner interface {
	BeginWrite(ctx context.Context) (*sql.Tx, error)
}

// Store is a single slot holding at most one transaction. It is empty when
// nothing has started or while an accessor holds the transaction on loan.
// A Store belongs to one request and is not safe for concurrent use.
type Store struct {
	tx   *sql.Tx
	lent *sql.Tx
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Take removes and returns the held transaction, or nil.
func (s *Store) Take() *sql.Tx {
	tx := s.tx
	s.tx = nil
	return tx
}

// Put stores tx. Putting into an occupied slot panics.
func (s *Store) Put(tx *sql.Tx) {
	if s.tx != nil {
		panic("txn: store already holds a transaction")
	}
	s.tx = tx
	if s.lent == tx {
		s.lent = nil
	}
}

func (s *Store) lend(tx *sql.Tx) {
	s.lent = tx
}

// onLoan reports whether the slot is empty because an accessor holds the
// transaction.
func (s *Store) onLoan() bool {
	return s.Empty() && s.lent != nil
}

// Reclaim empties the store and returns its transaction, including one an
// accessor still holds. onLoan reports the latter, an accessor that was never
// released.
func (s *Store) Reclaim() (tx *sql.Tx, onLoan bool) {
	onLoan = s.onLoan()
	if onLoan {
		tx = s.lent
	}
	if held := s.Replace(nil); held != nil {
		tx = held
	}
	return tx, onLoan
}

// Replace stores tx, which may be nil, and returns the previous occupant.
// Any outstanding loan is forgotten.
func (s *Store) Replace(tx *sql.Tx) *sql.Tx {
	prev := s.tx
	s.tx, s.lent = tx, nil
	return prev
}

// Empty reports whether the slot is empty.
func (s *Store) Empty() bool {
	return s.tx == nil
}
