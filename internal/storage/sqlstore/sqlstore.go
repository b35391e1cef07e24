// Package sqlstore implements storage.Store on top of database/sql. The
// SQLite and Postgres backends share it and differ only in driver, schema and
// placeholder style.
package sqlstore

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Dialect describes the SQL flavor of a backend.
type Dialect int

const (
	// QuestionMark uses ? placeholders (SQLite).
	QuestionMark Dialect = iota
	// Dollar uses $1, $2, ... placeholders (Postgres).
	Dollar
)

// Store implements storage.Store over an open *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps db. The schema must already exist.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB exposes the underlying handle for backend-specific setup.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders for the store's dialect. Queries in this
// package never contain a literal question mark.
func (s *Store) rebind(query string) string {
	if s.dialect != Dollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
