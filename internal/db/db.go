package db

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
)

type DB interface {
	InitDB() error

	Get() *sql.DB
	Close() error

	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
	Begin() (*sql.Tx, error)

	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

var dbLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	dbLogger = l
}

// DefaultCategories are seeded on schema init. Names are the fixed category set.
var DefaultCategories = []struct {
	ID          string
	Name        string
	Slug        string
	Description string
}{
	{"cat-strategy", "Strategy", "strategy", "Competitive positioning and long-range planning"},
	{"cat-growth", "Growth", "growth", "Acquisition, retention and scaling playbooks"},
	{"cat-leadership", "Leadership", "leadership", "Running teams and making calls under pressure"},
	{"cat-tactics", "Tactics", "tactics", "Short-cycle moves that win the quarter"},
	{"cat-insights", "Insights", "insights", "Field notes, data and market reads"},
}
