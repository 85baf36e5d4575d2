// Package importer turns an uploaded invoice file into a committed invoice, driving the
// transaction from GENERATED through RECEIVED to a terminal status.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	validatorv10 "github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-invoice-importflow/internal/channel"
	"github.com/imrishuroy/go-invoice-importflow/internal/invoices"
	"github.com/imrishuroy/go-invoice-importflow/internal/logger"
	"github.com/imrishuroy/go-invoice-importflow/internal/objects"
	"github.com/imrishuroy/go-invoice-importflow/internal/transactions"
	"github.com/imrishuroy/go-invoice-importflow/internal/validation"
)

// TransactionStore is the slice of transactions.Store the processor needs.
type TransactionStore interface {
	Get(ctx context.Context, id string) (*transactions.Transaction, error)
	Transition(ctx context.Context, id string, from, to transactions.Status) (bool, error)
	TransitionItem(id string, from, to transactions.Status) (types.TransactWriteItem, error)
}

// InvoiceStore commits invoices.
type InvoiceStore interface {
	Create(ctx context.Context, inv invoices.Invoice, extra ...types.TransactWriteItem) error
}

// ObjectStore reads and removes uploaded files.
type ObjectStore interface {
	Read(ctx context.Context, bucket, key string) ([]byte, error)
	Delete(ctx context.Context, bucket, key string) error
}

// Processor handles one object-created notification at a time. It holds no state between calls.
type Processor struct {
	txs      TransactionStore
	invoices InvoiceStore
	objects  ObjectStore
	notifier channel.Notifier
	validate *validatorv10.Validate
	nowFunc  func() time.Time
}

// NewProcessor creates a Processor with its collaborators injected.
func NewProcessor(txs TransactionStore, inv InvoiceStore, objs ObjectStore, notifier channel.Notifier) *Processor {
	return &Processor{
		txs:      txs,
		invoices: inv,
		objects:  objs,
		notifier: notifier,
		validate: validation.New(),
		nowFunc:  time.Now,
	}
}

// Process imports the object bucket/key. The key is the transaction id.
func (p *Processor) Process(ctx context.Context, bucket, key string) Outcome {
	ctx = logger.WithFields(ctx, "transactionId", key, "bucket", bucket)

	tx, err := p.txs.Get(ctx, key)
	if errors.Is(err, transactions.ErrNotFound) {
		logger.Warnf(ctx, "[importer] no transaction for object %s/%s", bucket, key)
		return ignored(key, "", "transaction not found")
	}
	if err != nil {
		return transient(key, fmt.Errorf("fetch transaction: %w", err))
	}
	ctx = logger.WithFields(ctx, "connectionId", tx.ConnectionID)

	if tx.Status != transactions.StatusGenerated {
		logger.Infof(ctx, "[importer] transaction=%s already %s; resending status", key, tx.Status)
		p.notifier.SendStatus(ctx, key, tx.ConnectionID, tx.Status)
		return ignored(key, tx.Status, "stale notification")
	}

	body, err := p.objects.Read(ctx, bucket, key)
	switch {
	case errors.Is(err, objects.ErrNotFound):
		logger.Warnf(ctx, "[importer] object %s/%s vanished before it was read", bucket, key)
		return ignored(key, tx.Status, "object not found")
	case errors.Is(err, objects.ErrTooLarge):
		return fatal(key, err)
	case err != nil:
		return transient(key, fmt.Errorf("read object: %w", err))
	}

	ok, err := p.txs.Transition(ctx, key, transactions.StatusGenerated, transactions.StatusReceived)
	if err != nil {
		return transient(key, fmt.Errorf("mark received: %w", err))
	}
	if !ok {
		return p.lostRace(ctx, key, tx.ConnectionID)
	}
	p.notifier.SendStatus(ctx, key, tx.ConnectionID, transactions.StatusReceived)
	logger.Infof(ctx, "[importer] transaction=%s received", key)

	var file invoices.File
	if err := json.Unmarshal(body, &file); err != nil {
		return fatal(key, fmt.Errorf("decode invoice file: %w", err))
	}
	if err := p.validate.Struct(file); err != nil {
		logger.Warnf(ctx, "[importer] invalid invoice file: %v", validation.FieldErrors(err))
		return fatal(key, fmt.Errorf("validate invoice file: %w", err))
	}

	if !validation.ValidInvoiceNumber(file.InvoiceNumber) {
		return p.reject(ctx, key, tx.ConnectionID, fmt.Sprintf("invoice number %q shorter than %d", file.InvoiceNumber, validation.MinInvoiceNumberLength))
	}

	return p.commit(ctx, bucket, key, tx.ConnectionID, file)
}

// commit writes the invoice and RECEIVED -> PROCESSED in one DynamoDB transaction,
// then cleans up the object and tells the client.
func (p *Processor) commit(ctx context.Context, bucket, key, connID string, file invoices.File) Outcome {
	guard, err := p.txs.TransitionItem(key, transactions.StatusReceived, transactions.StatusProcessed)
	if err != nil {
		return fatal(key, err)
	}

	inv := invoices.New(file, key, p.nowFunc())
	err = p.invoices.Create(ctx, inv, guard)
	switch {
	case errors.Is(err, invoices.ErrAlreadyExists):
		return p.reject(ctx, key, connID, fmt.Sprintf("invoice %s already exists for %s", file.InvoiceNumber, file.CustomerName))
	case errors.Is(err, invoices.ErrCommitConflict):
		return p.lostRace(ctx, key, connID)
	case err != nil:
		return transient(key, fmt.Errorf("commit invoice: %w", err))
	}

	var g errgroup.Group
	g.Go(func() error {
		return p.objects.Delete(ctx, bucket, key)
	})
	g.Go(func() error {
		p.notifier.SendStatus(ctx, key, connID, transactions.StatusProcessed)
		return nil
	})
	if err := g.Wait(); err != nil {
		// the bucket lifecycle rule removes leftovers
		logger.Errorf(ctx, err, "[importer] could not delete object %s/%s", bucket, key)
	}

	logger.Infof(ctx, "[importer] transaction=%s processed invoice=%s customer=%s", key, inv.InvoiceNumber, file.CustomerName)
	return success(key)
}

func (p *Processor) reject(ctx context.Context, key, connID, reason string) Outcome {
	ok, err := p.txs.Transition(ctx, key, transactions.StatusReceived, transactions.StatusNonValidInvoiceNumber)
	if err != nil {
		return transient(key, fmt.Errorf("mark rejected: %w", err))
	}
	if !ok {
		return p.lostRace(ctx, key, connID)
	}
	p.notifier.SendStatus(ctx, key, connID, transactions.StatusNonValidInvoiceNumber)
	p.notifier.Disconnect(ctx, connID)

	logger.Infof(ctx, "[importer] transaction=%s rejected: %s", key, reason)
	return rejected(key, reason)
}

// lostRace runs when a conditional write found the transaction moved by someone else
// (a duplicate delivery, a cancel, the sweeper) or already purged.
func (p *Processor) lostRace(ctx context.Context, key, connID string) Outcome {
	current, err := p.txs.Get(ctx, key)
	if errors.Is(err, transactions.ErrNotFound) {
		logger.Infof(ctx, "[importer] transaction=%s expired mid-flight", key)
		return ignored(key, "", "transaction expired")
	}
	if err != nil {
		return transient(key, fmt.Errorf("refetch transaction: %w", err))
	}
	logger.Infof(ctx, "[importer] transaction=%s moved to %s concurrently", key, current.Status)
	p.notifier.SendStatus(ctx, key, connID, current.Status)
	return ignored(key, current.Status, "concurrent update")
}
