// Package reaper tells clients their upload timed out once DynamoDB TTL purges the transaction.
package reaper

import (
	"context"

	"github.com/imrishuroy/go-invoice-importflow/internal/channel"
	"github.com/imrishuroy/go-invoice-importflow/internal/logger"
	"github.com/imrishuroy/go-invoice-importflow/internal/metrics"
	"github.com/imrishuroy/go-invoice-importflow/internal/transactions"
)

// Action is what the reaper did with one removal.
type Action string

const (
	ActionNotified       Action = "notified"
	ActionCompleted      Action = "completed"       // PROCESSED; the expected way to go
	ActionAlreadyTimeout Action = "already-timeout" // the sweeper got there first
	ActionNotExpired     Action = "not-expired"     // explicit delete, not TTL
	ActionNotTransaction Action = "not-transaction"
)

// Reaper reacts to transaction removals.
type Reaper struct {
	notifier channel.Notifier
	metrics  metrics.Recorder
}

// New creates a Reaper. A nil recorder disables metrics.
func New(notifier channel.Notifier, rec metrics.Recorder) *Reaper {
	if rec == nil {
		rec = metrics.Noop()
	}
	return &Reaper{notifier: notifier, metrics: rec}
}

// HandleRemoval decides what to tell the client about old, the last image of a removed record.
// expired is true only when the store's TTL process removed it.
func (r *Reaper) HandleRemoval(ctx context.Context, old transactions.Transaction, expired bool) Action {
	if old.PK != transactions.Partition {
		return ActionNotTransaction
	}
	ctx = logger.WithFields(ctx, "transactionId", old.TransactionID, "connectionId", old.ConnectionID)

	if !expired {
		logger.Infof(ctx, "[reaper] transaction=%s deleted explicitly; ignoring", old.TransactionID)
		return ActionNotExpired
	}

	switch old.Status {
	case transactions.StatusProcessed:
		logger.Debugf(ctx, "[reaper] transaction=%s expired after completion", old.TransactionID)
		return ActionCompleted
	case transactions.StatusTimeout:
		logger.Debugf(ctx, "[reaper] transaction=%s already timed out", old.TransactionID)
		return ActionAlreadyTimeout
	}

	logger.Infof(ctx, "[reaper] transaction=%s expired in %s; timing out", old.TransactionID, old.Status)
	r.notifier.SendStatus(ctx, old.TransactionID, old.ConnectionID, transactions.StatusTimeout)
	r.notifier.Disconnect(ctx, old.ConnectionID)
	r.metrics.Incr(ctx, metrics.TransactionTimeout, map[string]string{"From": string(old.Status)})
	return ActionNotified
}
