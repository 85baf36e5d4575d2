// Package eventlog appends audit facts about committed invoices to the events table.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-invoice-importflow/internal/aws"
	"github.com/imrishuroy/go-invoice-importflow/internal/invoices"
	"github.com/imrishuroy/go-invoice-importflow/internal/logger"
)

// InvoiceCreated is the only event type recorded today.
const InvoiceCreated = "INVOICE_CREATED"

// Info carries the invoice details worth auditing.
type Info struct {
	TransactionID string `dynamodbav:"transactionId"`
	ProductID     string `dynamodbav:"productId"`
	Quantity      int    `dynamodbav:"quantity"`
}

// Event is one row of the events table.
type Event struct {
	PK        string `dynamodbav:"pk"` // "#invoice_" + invoice number
	SK        string `dynamodbav:"sk"` // event type + "#" + invoice createdAt millis
	TTL       int64  `dynamodbav:"ttl"`
	Email     string `dynamodbav:"email"`
	CreatedAt int64  `dynamodbav:"createdAt"`
	Info      Info   `dynamodbav:"info"`
}

// Recorder writes events. It never reads them back.
type Recorder struct {
	client    aws.DynamoDBAPI
	tableName string
	ttl       time.Duration
	nowFunc   func() time.Time
}

// NewRecorder returns a Recorder whose events expire after ttl.
func NewRecorder(client aws.DynamoDBAPI, tableName string, ttl time.Duration) *Recorder {
	return &Recorder{client: client, tableName: tableName, ttl: ttl, nowFunc: time.Now}
}

// NewInvoiceCreated builds the event for inv as of now.
func NewInvoiceCreated(inv invoices.Invoice, now time.Time, ttl time.Duration) Event {
	return Event{
		PK:        invoices.PartitionPrefix + inv.InvoiceNumber,
		SK:        InvoiceCreated + "#" + strconv.FormatInt(inv.CreatedAt, 10),
		TTL:       now.Add(ttl).Unix(),
		Email:     inv.CustomerName(),
		CreatedAt: now.UnixMilli(),
		Info: Info{
			TransactionID: inv.TransactionID,
			ProductID:     inv.ProductID,
			Quantity:      inv.Quantity,
		},
	}
}

// RecordInvoiceCreated appends the INVOICE_CREATED fact for inv. The sort key derives from
// the invoice's own timestamp, so a redelivered notification does not add a second row.
func (r *Recorder) RecordInvoiceCreated(ctx context.Context, inv invoices.Invoice) error {
	ev := NewInvoiceCreated(inv, r.nowFunc(), r.ttl)
	item, err := attributevalue.MarshalMap(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &r.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(pk)"),
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			logger.Infof(ctx, "[events] %s %s already recorded", ev.PK, ev.SK)
			return nil
		}
		return fmt.Errorf("put event: %w", err)
	}
	logger.Infof(ctx, "[events] recorded %s for %s", InvoiceCreated, inv.InvoiceNumber)
	return nil
}

func awsString(s string) *string { return &s }
