package handlers

import (
	"context"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"github.com/imrishuroy/go-invoice-importflow/internal/aws"
	"github.com/imrishuroy/go-invoice-importflow/internal/invoices"
	"github.com/imrishuroy/go-invoice-importflow/internal/logger"
	"github.com/imrishuroy/go-invoice-importflow/internal/reaper"
	"github.com/imrishuroy/go-invoice-importflow/internal/transactions"
)

// ExpiryReaper handles transaction removals.
type ExpiryReaper interface {
	HandleRemoval(ctx context.Context, old transactions.Transaction, expired bool) reaper.Action
}

// EventRecorder records invoice facts.
type EventRecorder interface {
	RecordInvoiceCreated(ctx context.Context, inv invoices.Invoice) error
}

// StreamHandler routes invoices-table stream records: transaction removals go to the
// reaper, invoice inserts go to the event recorder.
type StreamHandler struct {
	reaper   ExpiryReaper
	recorder EventRecorder
}

// NewStreamHandler creates a StreamHandler.
func NewStreamHandler(r ExpiryReaper, rec EventRecorder) *StreamHandler {
	return &StreamHandler{reaper: r, recorder: rec}
}

// Handle never fails the batch; a bad record is logged and skipped.
func (h *StreamHandler) Handle(ctx context.Context, ev events.DynamoDBEvent) error {
	for _, rec := range ev.Records {
		recCtx := logger.WithFields(ctx, "eventId", rec.EventID, "eventName", rec.EventName)
		switch events.DynamoDBOperationType(rec.EventName) {
		case events.DynamoDBOperationTypeRemove:
			h.handleRemove(recCtx, rec)
		case events.DynamoDBOperationTypeInsert:
			h.handleInsert(recCtx, rec)
		}
	}
	return nil
}

func (h *StreamHandler) handleRemove(ctx context.Context, rec events.DynamoDBEventRecord) {
	var tx transactions.Transaction
	if !decodeImage(ctx, rec.Change.OldImage, &tx) || tx.PK != transactions.Partition {
		return
	}
	action := h.reaper.HandleRemoval(ctx, tx, aws.IsTTLRemoval(rec))
	logger.Debugf(ctx, "[reaper] transaction=%s action=%s", tx.TransactionID, action)
}

func (h *StreamHandler) handleInsert(ctx context.Context, rec events.DynamoDBEventRecord) {
	var inv invoices.Invoice
	if !decodeImage(ctx, rec.Change.NewImage, &inv) || !strings.HasPrefix(inv.PK, invoices.PartitionPrefix) {
		return
	}
	if err := h.recorder.RecordInvoiceCreated(ctx, inv); err != nil {
		logger.Errorf(ctx, err, "[events] could not record invoice %s", inv.InvoiceNumber)
	}
}

func decodeImage(ctx context.Context, image map[string]events.DynamoDBAttributeValue, out interface{}) bool {
	if len(image) == 0 {
		logger.Warn(ctx, "[stream] record without image; is the stream view NEW_AND_OLD_IMAGES?")
		return false
	}
	item, err := aws.FromStreamImage(image)
	if err != nil {
		logger.Errorf(ctx, err, "[stream] convert image")
		return false
	}
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		logger.Errorf(ctx, err, "[stream] decode image")
		return false
	}
	return true
}
