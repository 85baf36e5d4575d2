// Package broker issues pre-signed upload URLs and registers the matching transaction.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-invoice-importflow/internal/channel"
	"github.com/imrishuroy/go-invoice-importflow/internal/logger"
	"github.com/imrishuroy/go-invoice-importflow/internal/metrics"
	"github.com/imrishuroy/go-invoice-importflow/internal/transactions"
)

// URLSigner issues write URLs for object keys.
type URLSigner interface {
	PresignPut(ctx context.Context, key string, expires time.Duration) (string, error)
}

// TransactionCreator persists new transactions.
type TransactionCreator interface {
	Create(ctx context.Context, tx transactions.Transaction) error
}

// Ticket is what the client gets back: where to upload and how long the URL stays valid.
type Ticket struct {
	URL              string
	TransactionID    string
	ExpiresInSeconds int
}

// Broker implements getImportUrl.
type Broker struct {
	signer    URLSigner
	txs       TransactionCreator
	notifier  channel.Notifier
	metrics   metrics.Recorder
	timebox   time.Duration
	urlExpiry time.Duration
	endpoint  string
	newID     func() string
	nowFunc   func() time.Time
}

// Options configures the time windows.
type Options struct {
	Timebox   time.Duration // how long the transaction lives
	URLExpiry time.Duration // how long the write URL is valid
	Endpoint  string        // stored on the transaction for the notifiers
}

// New creates a Broker. A nil recorder disables metrics.
func New(signer URLSigner, txs TransactionCreator, notifier channel.Notifier, rec metrics.Recorder, opts Options) *Broker {
	if rec == nil {
		rec = metrics.Noop()
	}
	return &Broker{
		signer:    signer,
		txs:       txs,
		notifier:  notifier,
		metrics:   rec,
		timebox:   opts.Timebox,
		urlExpiry: opts.URLExpiry,
		endpoint:  opts.Endpoint,
		newID:     uuid.NewString,
		nowFunc:   time.Now,
	}
}

// RequestUpload creates a GENERATED transaction for connID, signs a URL for it and pushes
// the URL frame to the client. Errors mean nothing was sent.
func (b *Broker) RequestUpload(ctx context.Context, connID, requestID string) (*Ticket, error) {
	id := b.newID()
	ctx = logger.WithFields(ctx, "transactionId", id, "connectionId", connID)

	url, err := b.signer.PresignPut(ctx, id, b.urlExpiry)
	if err != nil {
		return nil, fmt.Errorf("sign upload url: %w", err)
	}

	now := b.nowFunc()
	tx := transactions.Transaction{
		TransactionID: id,
		TTL:           now.Add(b.timebox).Unix(),
		RequestID:     requestID,
		Timestamp:     now.UnixMilli(),
		ExpiresIn:     int(b.timebox.Seconds()),
		ConnectionID:  connID,
		Endpoint:      b.endpoint,
		Status:        transactions.StatusGenerated,
	}
	if err := b.txs.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	ticket := &Ticket{
		URL:              url,
		TransactionID:    id,
		ExpiresInSeconds: int(b.urlExpiry.Seconds()),
	}
	b.notifier.Send(ctx, connID, channel.URLFrame{
		URL:              ticket.URL,
		ExpiresInSeconds: ticket.ExpiresInSeconds,
		TransactionID:    ticket.TransactionID,
	})
	b.metrics.Incr(ctx, metrics.UploadURLIssued, nil)

	logger.Infof(ctx, "[broker] issued upload url for transaction=%s expires=%ds", id, ticket.ExpiresInSeconds)
	return ticket, nil
}
