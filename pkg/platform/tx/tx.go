// Package tx carries a SQL transaction through context and provides Runner,
// the single transactional boundary used by services.
//
// Every lifecycle mutation runs inside Runner.RunInTx: the state change, its
// audit entry, and any note commit together or not at all. Stores pick the
// context transaction up via From and fall back to their plain handle when no
// transaction is open (reads outside a mutation).
package tx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "bazaar/pkg/domain-errors"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts the SQL transaction from context if one is open.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner executes a function inside one atomic unit of work.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// defaultTxTimeout bounds a transaction when the caller supplied no deadline.
const defaultTxTimeout = 5 * time.Second

// SQLRunner runs work inside a database/sql transaction placed in context.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLRunner wraps db in a Runner. A zero timeout uses defaultTxTimeout.
func NewSQLRunner(db *sql.DB, timeout time.Duration) *SQLRunner {
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	return &SQLRunner{db: db, timeout: timeout}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin transaction")
	}
	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit transaction")
	}
	return nil
}

// numShards spreads in-memory transactions across independent locks, keyed by
// the aggregate the work targets, so unrelated applications never contend.
const numShards = 128

// MemoryRunner serializes units of work with sharded mutexes. It gives the
// in-memory stores the same "second writer re-reads current state" semantics
// the SQL runner gets from the database.
//
// Serialization is all it provides: there is no rollback, so a closure that
// fails after some writes leaves those writes in place. The in-memory stores
// are for tests and local development, where services keep closures
// fail-fast (guards before writes) and a rare partial write is acceptable.
type MemoryRunner struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

// NewMemoryRunner builds a MemoryRunner. A zero timeout uses defaultTxTimeout.
func NewMemoryRunner(timeout time.Duration) *MemoryRunner {
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	return &MemoryRunner{timeout: timeout}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	shard := r.selectShard(ctx)
	r.shards[shard].Lock()
	defer r.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

func (r *MemoryRunner) selectShard(ctx context.Context) int {
	if key, ok := ctx.Value(shardKeyCtx).(string); ok && key != "" {
		return int(fnvHash(key) % numShards)
	}
	return 0
}

// WithShardKey tags the context with the aggregate key (usually the
// application ID) used to pick a lock shard.
func WithShardKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, shardKeyCtx, key)
}

type shardKey struct{}

var shardKeyCtx = shardKey{}

// fnvHash is FNV-1a, chosen for distribution over short UUID strings.
func fnvHash(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
