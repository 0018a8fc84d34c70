package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/odapt/internal/client"
	"github.com/roach88/odapt/internal/ir"
)

// ErrBatchClosed is returned when a committed or rolled back batch is used.
var ErrBatchClosed = errors.New("batch already committed or rolled back")

// sqlBatch queues writes and applies them in one transaction on Commit.
// Reads through its client see committed state only.
type sqlBatch struct {
	store  *Store
	id     string
	client *batchClient

	mu     sync.Mutex
	queued []statement
	closed bool
}

var _ client.Batch = (*sqlBatch)(nil)

// BeginBatch implements client.Provider.
func (s *Store) BeginBatch(_ context.Context, settings client.Settings) (client.Batch, error) {
	b := &sqlBatch{
		store: s,
		id:    uuid.Must(uuid.NewV7()).String(),
	}
	b.client = &batchClient{
		sqlClient: &sqlClient{store: s, q: s.db, settings: settings},
		batch:     b,
	}
	s.logger.Debug("batch opened", "batch_id", b.id)
	return b, nil
}

func (b *sqlBatch) ID() string            { return b.id }
func (b *sqlBatch) Client() client.Client { return b.client }

func (b *sqlBatch) enqueue(st statement) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBatchClosed
	}
	b.queued = append(b.queued, st)
	return nil
}

// Commit applies every queued write in order. The first failure rolls the
// whole batch back.
func (b *sqlBatch) Commit(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBatchClosed
	}
	b.closed = true
	queued := b.queued
	b.queued = nil
	b.mu.Unlock()

	tx, err := b.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch %s: %w", b.id, err)
	}
	for i, st := range queued {
		if _, err := b.store.run(ctx, tx, st); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("batch %s: operation %d: %w", b.id, i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch %s: %w", b.id, err)
	}
	b.store.logger.Debug("batch committed", "batch_id", b.id, "operations", len(queued))
	return nil
}

// Rollback discards queued writes.
func (b *sqlBatch) Rollback() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBatchClosed
	}
	b.closed = true
	b.store.logger.Debug("batch rolled back", "batch_id", b.id, "operations", len(b.queued))
	b.queued = nil
	return nil
}

// batchClient reads like sqlClient and queues writes. Queued writes report
// no entry and a zero count.
type batchClient struct {
	*sqlClient
	batch *sqlBatch
}

func (c *batchClient) InsertEntry(_ context.Context, entitySet string, data *ir.Record, _ bool) (*ir.Record, error) {
	t, err := c.resolve(entitySet)
	if err != nil {
		return nil, err
	}
	st, err := prepareInsert(t, data)
	if err != nil {
		return nil, err
	}
	return nil, c.batch.enqueue(st)
}

func (c *batchClient) UpdateEntry(_ context.Context, entitySet string, key client.Key, data *ir.Record) (int, error) {
	t, err := c.resolve(entitySet)
	if err != nil {
		return 0, err
	}
	st, err := c.store.prepareUpdate(t, key, data)
	if err != nil {
		return 0, err
	}
	return 0, c.batch.enqueue(st)
}

func (c *batchClient) UpdateEntries(_ context.Context, entitySet, filterText string, data *ir.Record) (int, error) {
	t, err := c.resolve(entitySet)
	if err != nil {
		return 0, err
	}
	st, err := c.store.prepareUpdateWhere(t, filterText, data)
	if err != nil {
		return 0, err
	}
	return 0, c.batch.enqueue(st)
}

func (c *batchClient) DeleteEntry(_ context.Context, entitySet string, key client.Key) (int, error) {
	t, err := c.resolve(entitySet)
	if err != nil {
		return 0, err
	}
	st, err := c.store.prepareDelete(t, key)
	if err != nil {
		return 0, err
	}
	return 0, c.batch.enqueue(st)
}

func (c *batchClient) DeleteEntries(_ context.Context, entitySet, filterText string) (int, error) {
	t, err := c.resolve(entitySet)
	if err != nil {
		return 0, err
	}
	st, err := c.store.prepareDeleteWhere(t, filterText)
	if err != nil {
		return 0, err
	}
	return 0, c.batch.enqueue(st)
}
