package invoker

import (
	"context"
	"fmt"

	"github.com/jackc/puddle/v2"
	"go.uber.org/zap"
)

// PooledInvoker caps the number of concurrent in-flight invocations by
// acquiring a slot from a resource pool before delegating. Acquisition
// respects the caller's context, so a cancelled request never waits on
// a slot indefinitely.
type PooledInvoker struct {
	next Invoker
	pool *puddle.Pool[struct{}]
	log  *zap.Logger
}

var _ Invoker = (*PooledInvoker)(nil)

func NewPooledInvoker(next Invoker, maxConcurrent int32, log *zap.Logger) (*PooledInvoker, error) {
	if maxConcurrent <= 0 {
		return nil, fmt.Errorf("invalid max concurrent invocations: %d", maxConcurrent)
	}

	pool, err := puddle.NewPool(&puddle.Config[struct{}]{
		Constructor: func(context.Context) (struct{}, error) {
			return struct{}{}, nil
		},
		Destructor: func(struct{}) {},
		MaxSize:    maxConcurrent,
	})
	if err != nil {
		return nil, err
	}

	return &PooledInvoker{
		next: next,
		pool: pool,
		log:  log.Named("invoker_pooled"),
	}, nil
}

func (p *PooledInvoker) Invoke(ctx context.Context, functionID string, payload []byte) ([]byte, error) {
	slot, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("error acquiring invocation slot: %w", err)
	}
	defer slot.Release()

	return p.next.Invoke(ctx, functionID, payload)
}

// Close releases the pool. In-flight invocations finish first.
func (p *PooledInvoker) Close() {
	p.pool.Close()
}
