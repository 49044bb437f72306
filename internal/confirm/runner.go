// Package confirm owns the sale confirmation unit: ledger append, broker
// unit increment, commission computation and certificate mint happen as one
// atomic unit, serialized per broker.
package confirm

import (
	"context"
	"sync"
	"time"

	dErrors "weekchain/pkg/domain-errors"
)

// Runner executes the confirmation unit atomically. The key is the broker id
// (or the sale id for non-brokered sales); implementations guarantee that two
// units with the same key never interleave, so every unit observes a
// consistent units-before snapshot.
type Runner interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// shardedRunner serializes units with sharded mutexes instead of one global
// lock, spreading unrelated brokers across shards to cut contention under
// concurrent confirmation load.
const numShards = 128

// defaultTxTimeout bounds a single confirmation unit.
const defaultTxTimeout = 5 * time.Second

type ShardedRunner struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewShardedRunner() *ShardedRunner {
	return &ShardedRunner{}
}

func (r *ShardedRunner) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "confirmation aborted: context cancelled")
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := hashKey(key) % numShards
	r.shards[shard].Lock()
	defer r.shards[shard].Unlock()

	// Re-check after acquiring the lock: a unit that waited out its deadline
	// in the queue must not run.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "confirmation aborted: context cancelled")
	}

	return fn(ctx)
}

// hashKey uses FNV-1a for even shard distribution.
func hashKey(s string) uint32 {
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
