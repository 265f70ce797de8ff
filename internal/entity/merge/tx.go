package merge

import (
	"context"
	"database/sql"

	txcontext "unify/pkg/platform/tx"
)

// StoreTx runs a function inside a storage transaction. The SQL
// implementation gives the merge its all-or-nothing guarantee; the memory
// implementation exists so unit tests and dev mode can run the same service
// code without a database (and without atomicity across stores).
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type sqlTx struct {
	db *sql.DB
}

// NewSQLTx wraps a *sql.DB as a StoreTx.
func NewSQLTx(db *sql.DB) StoreTx {
	return &sqlTx{db: db}
}

func (t *sqlTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return txcontext.RunInTx(ctx, t.db, fn)
}

type memoryTx struct{}

// NewMemoryTx returns a StoreTx that simply invokes fn.
func NewMemoryTx() StoreTx {
	return memoryTx{}
}

func (memoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
