package txn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/devmarvs/bear"
	"github.com/devmarvs/bear/apperr"
	"github.com/devmarvs/bear/db"
)

var (
	// ErrBegin indicates the database could not start a transaction.
	ErrBegin = errors.New("txn: begin failed")
	// ErrFinalize indicates a commit or rollback failure.
	ErrFinalize = errors.New("txn: finalize failed")
)

const scopeKey = "bear.txn.scope"

type scope struct {
	store    *Store
	db       Beginner
	recorder Recorder
}

// Install attaches a request store and the database it draws from.
func Install(ctx *bear.Context, store *Store, database Beginner, recorder Recorder) {
	if recorder == nil {
		recorder = Discard
	}
	ctx.Set(scopeKey, &scope{store: store, db: database, recorder: recorder})
}

func lookup(ctx *bear.Context) (*scope, error) {
	value, ok := ctx.Get(scopeKey)
	if !ok {
		return nil, apperr.InvalidState("txn store missing in request")
	}
	sc, ok := value.(*scope)
	if !ok || sc.store == nil || sc.db == nil {
		return nil, apperr.InvalidState("txn store missing in request")
	}
	return sc, nil
}

type accessor struct {
	scope
	tx *sql.Tx
}

func (a *accessor) get(ctx context.Context) (*sql.Tx, error) {
	if a.tx != nil {
		return a.tx, nil
	}
	if tx := a.store.Take(); tx != nil {
		a.store.lend(tx)
		a.tx = tx
		return tx, nil
	}
	if a.store.onLoan() {
		// Beginning here would wait forever on the single writer connection.
		return nil, apperr.InvalidState("transaction already on loan")
	}

	tx, err := a.db.BeginWrite(ctx)
	if err != nil {
		return nil, apperr.Internal("database unavailable", fmt.Errorf("%w: %w", ErrBegin, err))
	}
	a.recorder.Record(Started)
	a.store.lend(tx)
	a.tx = tx
	return tx, nil
}

// Release returns a held transaction to the store. It is safe to call more
// than once.
func (a *accessor) Release() {
	if a.tx == nil {
		return
	}
	a.store.Put(a.tx)
	a.tx = nil
}

// WriteTxn lazily borrows the request transaction for writing.
type WriteTxn struct {
	accessor
}

// Write returns an accessor over the request transaction. Callers defer
// Release.
func Write(ctx *bear.Context) (*WriteTxn, error) {
	sc, err := lookup(ctx)
	if err != nil {
		return nil, err
	}
	return &WriteTxn{accessor{scope: *sc}}, nil
}

// Get returns the request transaction, beginning it on first use.
func (w *WriteTxn) Get(ctx context.Context) (*sql.Tx, error) {
	return w.get(ctx)
}

// ReadTxn lazily borrows the request transaction for queries only.
type ReadTxn struct {
	accessor
}

// Read returns a query-only accessor over the request transaction. It
// shares the write transaction so a handler sees its own writes.
func Read(ctx *bear.Context) (*ReadTxn, error) {
	sc, err := lookup(ctx)
	if err != nil {
		return nil, err
	}
	return &ReadTxn{accessor{scope: *sc}}, nil
}

// Get returns the request transaction as a Reader.
func (r *ReadTxn) Get(ctx context.Context) (db.Reader, error) {
	tx, err := r.get(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Standalone owns its transaction outright, outside any request store.
type Standalone struct {
	WriteTxn
}

// NewStandalone returns an accessor with a private store.
func NewStandalone(database Beginner, recorder Recorder) *Standalone {
	if recorder == nil {
		recorder = Discard
	}
	return &Standalone{WriteTxn{accessor{scope: scope{store: NewStore(), db: database, recorder: recorder}}}}
}

// Commit commits the transaction if one was started.
func (s *Standalone) Commit() error {
	return Finalize(s.take(), true, s.recorder)
}

// Rollback rolls the transaction back if one was started.
func (s *Standalone) Rollback() error {
	return Finalize(s.take(), false, s.recorder)
}

func (s *Standalone) take() *sql.Tx {
	if tx := s.tx; tx != nil {
		s.tx = nil
		return tx
	}
	return s.store.Take()
}

// Finalize commits or rolls back tx and records the outcome. A nil tx is a
// no-op.
func Finalize(tx *sql.Tx, commit bool, recorder Recorder) error {
	if tx == nil {
		return nil
	}
	if recorder == nil {
		recorder = Discard
	}

	if commit {
		if err := tx.Commit(); err != nil {
			return apperr.Internal("transaction commit failed", fmt.Errorf("%w: %w", ErrFinalize, err))
		}
		recorder.Record(Committed)
		return nil
	}

	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return apperr.Internal("transaction rollback failed", fmt.Errorf("%w: %w", ErrFinalize, err))
	}
	recorder.Record(RolledBack)
	return nil
}
