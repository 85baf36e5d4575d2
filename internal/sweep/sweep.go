// Package sweep times out transactions whose time box has passed but which the store has
// not purged yet. It does the reaper's job on a schedule instead of waiting for TTL.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/imrishuroy/go-invoice-importflow/internal/channel"
	"github.com/imrishuroy/go-invoice-importflow/internal/logger"
	"github.com/imrishuroy/go-invoice-importflow/internal/metrics"
	"github.com/imrishuroy/go-invoice-importflow/internal/transactions"
)

// DefaultLimit bounds one sweep when the caller passes 0.
const DefaultLimit = 100

// TransactionStore is the slice of transactions.Store the sweeper needs.
type TransactionStore interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]transactions.Transaction, error)
	Transition(ctx context.Context, id string, from, to transactions.Status) (bool, error)
}

// Result summarises one sweep.
type Result struct {
	Scanned  int `json:"scanned"`
	TimedOut int `json:"timedOut"`
	Skipped  int `json:"skipped"` // moved by someone else between scan and write
	Failed   int `json:"failed"`
}

// Sweeper runs sweeps.
type Sweeper struct {
	txs      TransactionStore
	notifier channel.Notifier
	metrics  metrics.Recorder
	nowFunc  func() time.Time
}

// New creates a Sweeper. A nil recorder disables metrics.
func New(txs TransactionStore, notifier channel.Notifier, rec metrics.Recorder) *Sweeper {
	if rec == nil {
		rec = metrics.Noop()
	}
	return &Sweeper{txs: txs, notifier: notifier, metrics: rec, nowFunc: time.Now}
}

// Run times out up to limit expired transactions. Each one is moved to TIMEOUT with a
// conditional write first, so a concurrent import or cancel wins cleanly and the client
// hears TIMEOUT at most once.
func (s *Sweeper) Run(ctx context.Context, limit int) (Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var res Result

	expired, err := s.txs.ListExpired(ctx, s.nowFunc(), limit)
	if err != nil {
		return res, fmt.Errorf("list expired: %w", err)
	}
	res.Scanned = len(expired)

	for _, tx := range expired {
		txCtx := logger.WithFields(ctx, "transactionId", tx.TransactionID, "connectionId", tx.ConnectionID)

		ok, err := s.txs.Transition(txCtx, tx.TransactionID, tx.Status, transactions.StatusTimeout)
		if err != nil {
			logger.Errorf(txCtx, err, "[sweep] could not time out transaction=%s", tx.TransactionID)
			res.Failed++
			continue
		}
		if !ok {
			res.Skipped++
			continue
		}

		s.notifier.SendStatus(txCtx, tx.TransactionID, tx.ConnectionID, transactions.StatusTimeout)
		s.notifier.Disconnect(txCtx, tx.ConnectionID)
		s.metrics.Incr(txCtx, metrics.TransactionTimeout, map[string]string{"From": string(tx.Status)})
		res.TimedOut++
	}

	logger.Infof(ctx, "[sweep] scanned=%d timed_out=%d skipped=%d failed=%d", res.Scanned, res.TimedOut, res.Skipped, res.Failed)
	return res, nil
}
