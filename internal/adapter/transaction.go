package adapter

import (
	"context"
	"fmt"

	"github.com/roach88/odapt/internal/client"
	"github.com/roach88/odapt/internal/expr"
	"github.com/roach88/odapt/internal/ir"
)

// Transaction groups writes into one remote batch. All writes share the
// batch's client and are applied together on Commit.
//
// A Transaction must be used from a single goroutine.
type Transaction struct {
	adapter *TableAdapter
	batch   client.Batch
	id      string
}

// BeginTransaction opens a remote batch.
func (a *TableAdapter) BeginTransaction(ctx context.Context) (*Transaction, error) {
	batch, err := a.provider.BeginBatch(ctx, a.settings)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	tx := &Transaction{adapter: a, batch: batch, id: a.ids.Generate()}
	a.logger.Debug("transaction started", "batch_id", tx.id, "remote_batch_id", batch.ID())
	return tx, nil
}

// ID returns the transaction id used in logs.
func (tx *Transaction) ID() string {
	return tx.id
}

// Insert queues an insert. Batched inserts return no entry.
func (tx *Transaction) Insert(ctx context.Context, table string, data *ir.Record, resultRequired bool) (*ir.Record, error) {
	return tx.adapter.insert(ctx, tx.batch.Client(), tx.id, table, data, resultRequired)
}

// Update queues an update. The count reported by the batch client is
// returned as is.
func (tx *Transaction) Update(ctx context.Context, table string, data *ir.Record, criteria expr.Expression) (int, error) {
	return tx.adapter.update(ctx, tx.batch.Client(), tx.id, table, data, criteria)
}

// Delete queues a delete.
func (tx *Transaction) Delete(ctx context.Context, table string, criteria expr.Expression) (int, error) {
	return tx.adapter.delete(ctx, tx.batch.Client(), tx.id, table, criteria)
}

// Commit submits every queued write atomically.
func (tx *Transaction) Commit(ctx context.Context) error {
	if err := tx.batch.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction %s: %w", tx.id, err)
	}
	tx.adapter.logger.Debug("transaction committed", "batch_id", tx.id)
	return nil
}

// Rollback discards queued writes.
func (tx *Transaction) Rollback() error {
	if err := tx.batch.Rollback(); err != nil {
		return fmt.Errorf("rollback transaction %s: %w", tx.id, err)
	}
	tx.adapter.logger.Debug("transaction rolled back", "batch_id", tx.id)
	return nil
}
