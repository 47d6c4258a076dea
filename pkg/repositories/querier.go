package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Querier is the minimal read surface shared by an open transaction and the
// replica-routing pool. Lookups that take no lock accept a Querier so plain
// reads can be served by a replica.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
