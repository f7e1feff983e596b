package db

import (
	"errors"
	"strconv"
	"strings"
)

// Dialect selects the placeholder style of built statements.
type Dialect int

const (
	// DialectQuestion keeps ? placeholders (sqlite).
	DialectQuestion Dialect = iota
	// DialectDollar numbers placeholders as $1, $2 (postgres via pgx).
	DialectDollar
)

var (
	// ErrMissingTable indicates a missing table name.
	ErrMissingTable = errors.New("table required")
	// ErrMissingColumns indicates a missing column list.
	ErrMissingColumns = errors.New("columns required")
	// ErrMissingValues indicates missing values for insert or update.
	ErrMissingValues = errors.New("values required")
	// ErrMismatchedValues indicates values count mismatch.
	ErrMismatchedValues = errors.New("values count does not match columns")
	// ErrMissingWhere indicates an UPDATE or DELETE without a condition.
	ErrMissingWhere = errors.New("where clause required")
)

// conditions collects AND-ed WHERE terms and their arguments.
type conditions struct {
	terms []string
	args  []any
}

func (c conditions) and(condition string, args []any) conditions {
	if condition == "" {
		return c
	}
	return conditions{
		terms: append(append([]string{}, c.terms...), condition),
		args:  append(append([]any{}, c.args...), args...),
	}
}

func (c conditions) writeTo(sb *strings.Builder) {
	if len(c.terms) == 0 {
		return
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(c.terms, " AND "))
}

// SelectBuilder builds SELECT statements.
type SelectBuilder struct {
	dialect Dialect
	columns []string
	table   string
	where   conditions
	orderBy string
	limit   int
}

// Select starts a SELECT of columns, or of * when none are given.
func Select(columns ...string) SelectBuilder {
	return SelectBuilder{columns: columns, limit: -1}
}

// Dialect sets the placeholder style.
func (b SelectBuilder) Dialect(dialect Dialect) SelectBuilder {
	b.dialect = dialect
	return b
}

// From sets the source table.
func (b SelectBuilder) From(table string) SelectBuilder {
	b.table = table
	return b
}

// Where adds a condition.
func (b SelectBuilder) Where(condition string, args ...any) SelectBuilder {
	b.where = b.where.and(condition, args)
	return b
}

// OrderBy sets the ORDER BY clause.
func (b SelectBuilder) OrderBy(order string) SelectBuilder {
	b.orderBy = order
	return b
}

// Limit caps the row count. Negative values clear it.
func (b SelectBuilder) Limit(limit int) SelectBuilder {
	b.limit = limit
	return b
}

// Build returns the statement and its arguments.
func (b SelectBuilder) Build() (string, []any, error) {
	if b.table == "" {
		return "", nil, ErrMissingTable
	}
	columns := "*"
	if len(b.columns) > 0 {
		columns = strings.Join(b.columns, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + columns + " FROM " + b.table)
	b.where.writeTo(&sb)
	if b.orderBy != "" {
		sb.WriteString(" ORDER BY " + b.orderBy)
	}
	if b.limit >= 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(b.limit))
	}
	return numbered(sb.String(), b.dialect), b.where.args, nil
}

// InsertBuilder builds single-row INSERT statements.
type InsertBuilder struct {
	dialect Dialect
	table   string
	columns []string
	values  []any
}

// Insert starts an INSERT into table.
func Insert(table string) InsertBuilder {
	return InsertBuilder{table: table}
}

// Dialect sets the placeholder style.
func (b InsertBuilder) Dialect(dialect Dialect) InsertBuilder {
	b.dialect = dialect
	return b
}

// Columns sets the column list.
func (b InsertBuilder) Columns(columns ...string) InsertBuilder {
	b.columns = append([]string{}, columns...)
	return b
}

// Values sets the row, one value per column.
func (b InsertBuilder) Values(values ...any) InsertBuilder {
	b.values = append([]any{}, values...)
	return b
}

// Build returns the statement and its arguments.
func (b InsertBuilder) Build() (string, []any, error) {
	switch {
	case b.table == "":
		return "", nil, ErrMissingTable
	case len(b.columns) == 0:
		return "", nil, ErrMissingColumns
	case len(b.values) == 0:
		return "", nil, ErrMissingValues
	case len(b.values) != len(b.columns):
		return "", nil, ErrMismatchedValues
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(b.columns)), ", ")
	query := "INSERT INTO " + b.table + " (" + strings.Join(b.columns, ", ") + ") VALUES (" + placeholders + ")"
	return numbered(query, b.dialect), b.values, nil
}

// UpdateBuilder builds UPDATE statements. A condition is mandatory.
type UpdateBuilder struct {
	dialect Dialect
	table   string
	set     conditions
	where   conditions
}

// Update starts an UPDATE of table.
func Update(table string) UpdateBuilder {
	return UpdateBuilder{table: table}
}

// Dialect sets the placeholder style.
func (b UpdateBuilder) Dialect(dialect Dialect) UpdateBuilder {
	b.dialect = dialect
	return b
}

// Set assigns value to column.
func (b UpdateBuilder) Set(column string, value any) UpdateBuilder {
	if column != "" {
		b.set = b.set.and(column+" = ?", []any{value})
	}
	return b
}

// Where adds a condition.
func (b UpdateBuilder) Where(condition string, args ...any) UpdateBuilder {
	b.where = b.where.and(condition, args)
	return b
}

// Build returns the statement and its arguments, assignments first.
func (b UpdateBuilder) Build() (string, []any, error) {
	switch {
	case b.table == "":
		return "", nil, ErrMissingTable
	case len(b.set.terms) == 0:
		return "", nil, ErrMissingValues
	case len(b.where.terms) == 0:
		return "", nil, ErrMissingWhere
	}

	var sb strings.Builder
	sb.WriteString("UPDATE " + b.table + " SET " + strings.Join(b.set.terms, ", "))
	b.where.writeTo(&sb)
	args := append(append([]any{}, b.set.args...), b.where.args...)
	return numbered(sb.String(), b.dialect), args, nil
}

// DeleteBuilder builds DELETE statements. A condition is mandatory.
type DeleteBuilder struct {
	dialect Dialect
	table   string
	where   conditions
}

// Delete starts a DELETE from table.
func Delete(table string) DeleteBuilder {
	return DeleteBuilder{table: table}
}

// Dialect sets the placeholder style.
func (b DeleteBuilder) Dialect(dialect Dialect) DeleteBuilder {
	b.dialect = dialect
	return b
}

// Where adds a condition.
func (b DeleteBuilder) Where(condition string, args ...any) DeleteBuilder {
	b.where = b.where.and(condition, args)
	return b
}

// Build returns the statement and its arguments.
func (b DeleteBuilder) Build() (string, []any, error) {
	if b.table == "" {
		return "", nil, ErrMissingTable
	}
	if len(b.where.terms) == 0 {
		return "", nil, ErrMissingWhere
	}

	var sb strings.Builder
	sb.WriteString("DELETE FROM " + b.table)
	b.where.writeTo(&sb)
	return numbered(sb.String(), b.dialect), b.where.args, nil
}

// numbered rewrites ? placeholders as $n for DialectDollar.
func numbered(query string, dialect Dialect) string {
	if dialect != DialectDollar {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r != '?' {
			sb.WriteRune(r)
			continue
		}
		n++
		sb.WriteString("$" + strconv.Itoa(n))
	}
	return sb.String()
}
