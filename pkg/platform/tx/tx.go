// Package tx provides the serialization boundary every ledger mutation runs inside.
package tx

import (
	"context"
	"sync"

	dErrors "trustledger/pkg/domain-errors"
)

// Serializer admits one mutation at a time. Implementations may wrap a database
// transaction or, in-memory, a coarse lock.
type Serializer interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Exclusive is a single-writer Serializer backed by one mutex.
//
// A context that is already done is rejected before and after waiting for the lock.
// Once fn starts it runs to completion: fn never observes cancellation from here.
type Exclusive struct {
	mu sync.Mutex
}

// NewExclusive returns a ready Exclusive serializer.
func NewExclusive() *Exclusive {
	return &Exclusive{}
}

func (e *Exclusive) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation aborted: context cancelled")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation aborted: context cancelled")
	}
	return fn(context.WithoutCancel(ctx))
}
