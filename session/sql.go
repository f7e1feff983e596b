package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/devmarvs/bear"
	"github.com/devmarvs/bear/clock"
	"github.com/devmarvs/bear/db"
)

// DefaultTable is the table created by the embedded migrations.
const DefaultTable = "sessions"

// SQLStore keeps sessions in a SQL table, inside the caller's transaction.
type SQLStore struct {
	table     db.Table
	lifetimes Lifetimes
	hook      db.QueryHook
}

// SQLOption configures a SQLStore.
type SQLOption func(*SQLStore)

// WithTable overrides the session table name.
func WithTable(name string) SQLOption {
	return func(s *SQLStore) {
		s.table.Name = name
	}
}

// WithQueryHook reports every statement the store runs.
func WithQueryHook(hook db.QueryHook) SQLOption {
	return func(s *SQLStore) {
		s.hook = hook
	}
}

// NewSQLStore builds a store over the dialect and timeout of m.
func NewSQLStore(m *db.Main, lifetimes Lifetimes, options ...SQLOption) (*SQLStore, error) {
	if lifetimes == nil {
		lifetimes = DefaultLifetimes()
	}
	store := &SQLStore{table: m.Table(DefaultTable), lifetimes: lifetimes}
	for _, opt := range options {
		opt(store)
	}
	if !tableNamePattern.MatchString(store.table.Name) {
		return nil, fmt.Errorf("invalid session table name: %s", store.table.Name)
	}
	return store, nil
}

// Find loads the session matching an authentication. A device credential
// must also name the session's subject.
func (s *SQLStore) Find(ctx context.Context, tx db.QueryDB, auth bear.Authentication) (Session, error) {
	query, args, err := db.Select("kind", "subject", "parent", "expires").
		From(s.table.Name).
		Where("code = ?", Hash(auth.Secret)).
		Dialect(s.table.Dialect).
		Build()
	if err != nil {
		return Session{}, err
	}

	row, cancel := db.QueryRow(ctx, s.table.Timeout, s.conn(tx), query, args...)
	defer cancel()

	found := Session{Code: auth.Secret}
	if err := row.Scan(&found.Kind, &found.Subject, &found.Parent, &found.Expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	if found.Kind != auth.Kind {
		return Session{}, ErrNotFound
	}
	if auth.Kind == bear.KindDevice && found.Subject != auth.ID {
		return Session{}, ErrSubjectMismatch
	}
	return found, nil
}

// Extend moves the expiry of a session.
func (s *SQLStore) Extend(ctx context.Context, tx db.QueryDB, code string, expires clock.Instant) error {
	n, err := db.UpdateField(ctx, s.conn(tx), s.table, "expires", expires, "code = ?", Hash(code))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *SQLStore) Delete(ctx context.Context, tx db.QueryDB, code string) error {
	_, err := db.DeleteWhere(ctx, s.conn(tx), s.table, "code = ?", Hash(code))
	return err
}

// Insert stores a new session.
func (s *SQLStore) Insert(ctx context.Context, tx db.QueryDB, session Session) error {
	return db.InsertRow(ctx, s.conn(tx), s.table,
		[]string{"code", "kind", "subject", "parent", "expires"},
		Hash(session.Code), session.Kind, session.Subject, session.Parent, session.Expires,
	)
}

// Lifetime returns the sliding lifetime of kind in seconds.
func (s *SQLStore) Lifetime(kind string) int64 {
	return s.lifetimes.For(kind)
}

// Principal maps a session to its principal.
func (s *SQLStore) Principal(session Session) bear.Principal {
	return PrincipalOf(session)
}

// Prune deletes every session whose expiry has been reached.
func (s *SQLStore) Prune(ctx context.Context, tx db.QueryDB, now clock.Instant) (int64, error) {
	return db.DeleteWhere(ctx, s.conn(tx), s.table, "expires <= ?", now)
}

// Expires reads the stored expiry of a session.
func (s *SQLStore) Expires(ctx context.Context, tx db.QueryDB, code string) (clock.Instant, bool, error) {
	return db.FindOptField[clock.Instant](ctx, s.conn(tx), s.table, "expires", "code = ?", Hash(code))
}

func (s *SQLStore) conn(tx db.QueryDB) db.QueryDB {
	if s.hook == nil {
		return tx
	}
	return db.WithQueryHook(tx, s.hook)
}

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)?$`)
