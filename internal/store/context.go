package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Context is a serialized execution context over a Store. Work submitted
// with Perform or PerformAsync runs one block at a time, in submission
// order, on the context's own goroutine.
//
// Mutations accumulate in a pending transaction that is shared by all
// blocks until Tx.Commit. Reads inside a block observe the pending changes.
// Closing a context rolls back anything not committed.
type Context struct {
	store *Store
	name  string
	work  chan job
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	// Owned by the worker goroutine.
	tx       *sql.Tx
	closeErr error
}

type job struct {
	ctx    context.Context
	fn     func(Tx) error
	result chan error
}

// NewContext starts a new execution context. The caller must Close it.
func (s *Store) NewContext(name string) *Context {
	c := &Context{
		store: s,
		name:  name,
		work:  make(chan job, 64),
		done:  make(chan struct{}),
	}
	go c.run()
	return c
}

// Name returns the label given at creation, used in logs.
func (c *Context) Name() string { return c.name }

// Store returns the store the context operates on.
func (c *Context) Store() *Store { return c.store }

// EntityDescriptor is a shortcut for c.Store().EntityDescriptor.
func (c *Context) EntityDescriptor(name string) (EntityDescriptor, error) {
	return c.store.EntityDescriptor(name)
}

// Perform runs fn on the context and waits for it to finish. fn must not
// call Perform on the same context.
//
// Cancelling ctx only abandons a block that has not been queued yet; once
// queued the block runs to completion.
func (c *Context) Perform(ctx context.Context, fn func(Tx) error) error {
	res, err := c.enqueue(ctx, fn)
	if err != nil {
		return err
	}
	return <-res
}

// PerformAsync queues fn and returns a channel that receives its result.
// Blocks queued from one goroutine run in the order they were queued.
func (c *Context) PerformAsync(ctx context.Context, fn func(Tx) error) <-chan error {
	res, err := c.enqueue(ctx, fn)
	if err != nil {
		ch := make(chan error, 1)
		ch <- err
		return ch
	}
	return res
}

// Commit commits the pending transaction, if any.
func (c *Context) Commit(ctx context.Context) error {
	return c.Perform(ctx, func(tx Tx) error { return tx.Commit() })
}

func (c *Context) enqueue(ctx context.Context, fn func(Tx) error) (<-chan error, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, fmt.Errorf("%w: %s", ErrClosed, c.name)
	}
	j := job{
		ctx:    context.WithoutCancel(ctx),
		fn:     fn,
		result: make(chan error, 1),
	}
	select {
	case c.work <- j:
		return j.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Context) run() {
	defer close(c.done)
	for j := range c.work {
		j.result <- c.exec(j)
	}
	if c.tx != nil {
		c.store.logger.Warn("rolling back uncommitted changes", "context", c.name)
		c.closeErr = c.tx.Rollback()
		c.tx = nil
	}
}

func (c *Context) exec(j job) (err error) {
	t := &txn{c: c, ctx: j.ctx}
	defer func() {
		t.finished = true
		if r := recover(); r != nil {
			err = fmt.Errorf("perform %s: panic: %v", c.name, r)
		}
	}()
	return j.fn(t)
}

// Close waits for queued work, rolls back uncommitted changes and stops the
// context. It is safe to call more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.closed = true
	close(c.work)
	c.mu.Unlock()
	<-c.done
	return c.closeErr
}
