// Package cancel lets a client abandon its own upload before it completes.
package cancel

import (
	"context"
	"errors"
	"fmt"

	"github.com/imrishuroy/go-invoice-importflow/internal/channel"
	"github.com/imrishuroy/go-invoice-importflow/internal/logger"
	"github.com/imrishuroy/go-invoice-importflow/internal/metrics"
	"github.com/imrishuroy/go-invoice-importflow/internal/transactions"
)

// TransactionStore is the slice of transactions.Store cancel needs.
type TransactionStore interface {
	Get(ctx context.Context, id string) (*transactions.Transaction, error)
	Transition(ctx context.Context, id string, from, to transactions.Status) (bool, error)
}

// Canceller implements the cancelImport route.
type Canceller struct {
	txs      TransactionStore
	notifier channel.Notifier
	metrics  metrics.Recorder
}

// New creates a Canceller. A nil recorder disables metrics.
func New(txs TransactionStore, notifier channel.Notifier, rec metrics.Recorder) *Canceller {
	if rec == nil {
		rec = metrics.Noop()
	}
	return &Canceller{txs: txs, notifier: notifier, metrics: rec}
}

// Cancel moves txID to CANCELLED on behalf of connID and pushes the resulting status.
// Unknown ids, and ids owned by another connection, are answered with NOT_FOUND. A
// transaction that already finished keeps its status and the client is told what it is.
func (c *Canceller) Cancel(ctx context.Context, connID, txID string) (transactions.Status, error) {
	ctx = logger.WithFields(ctx, "transactionId", txID, "connectionId", connID)

	// a racing writer can move the record at most twice (GENERATED -> RECEIVED -> terminal)
	for attempt := 0; attempt < 3; attempt++ {
		tx, err := c.txs.Get(ctx, txID)
		if errors.Is(err, transactions.ErrNotFound) {
			return c.reply(ctx, connID, txID, transactions.StatusNotFound), nil
		}
		if err != nil {
			return "", fmt.Errorf("fetch transaction: %w", err)
		}
		if tx.ConnectionID != connID {
			logger.Warnf(ctx, "[cancel] transaction=%s belongs to another connection", txID)
			return c.reply(ctx, connID, txID, transactions.StatusNotFound), nil
		}
		if transactions.IsTerminal(tx.Status) {
			return c.reply(ctx, connID, txID, tx.Status), nil
		}

		ok, err := c.txs.Transition(ctx, txID, tx.Status, transactions.StatusCancelled)
		if err != nil {
			return "", fmt.Errorf("cancel transaction: %w", err)
		}
		if ok {
			c.metrics.Incr(ctx, metrics.ImportCancelled, map[string]string{"From": string(tx.Status)})
			logger.Infof(ctx, "[cancel] transaction=%s cancelled from %s", txID, tx.Status)
			return c.reply(ctx, connID, txID, transactions.StatusCancelled), nil
		}
	}
	return "", fmt.Errorf("transaction %s kept changing while cancelling", txID)
}

func (c *Canceller) reply(ctx context.Context, connID, txID string, status transactions.Status) transactions.Status {
	c.notifier.SendStatus(ctx, txID, connID, status)
	return status
}
