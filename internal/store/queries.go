// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package store provides database access for pages, sections, blocks,
// versions, drafts, audit records and system events.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// ErrAuditImmutable is returned when something tries to change an audit record.
var ErrAuditImmutable = errors.New("audit log is append-only")

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries runs the package's SQL against a database or transaction.
type Queries struct {
	db      DBTX
	dialect Dialect
}

// New returns Queries for a SQLite database.
func New(db DBTX) *Queries {
	return &Queries{db: db, dialect: DialectSQLite}
}

// NewWithDialect returns Queries for a database of the given dialect.
func NewWithDialect(db DBTX, d Dialect) *Queries {
	return &Queries{db: db, dialect: d}
}

// WithTx returns Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, dialect: q.dialect}
}

// Dialect returns the dialect the queries are written for.
func (q *Queries) Dialect() Dialect {
	return q.dialect
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.dialect.Rebind(query), args...)
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.dialect.Rebind(query), args...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.dialect.Rebind(query), args...)
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// jsonText converts a raw JSON value into a column argument, defaulting to an empty object.
func jsonText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "{}"
	}
	return string(raw)
}

// jsonColumn scans a JSON column stored as TEXT or JSONB.
type jsonColumn struct {
	dst *json.RawMessage
}

func (c jsonColumn) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c.dst = json.RawMessage("{}")
	case []byte:
		*c.dst = append(json.RawMessage(nil), v...)
	case string:
		*c.dst = json.RawMessage(v)
	default:
		return errors.New("unsupported JSON column type")
	}
	return nil
}
