package transactions

import "time"

// Status is the lifecycle state of an upload transaction, sent verbatim to clients.
type Status string

// Transaction statuses
const (
	StatusGenerated             Status = "GENERATED"
	StatusReceived              Status = "RECEIVED"
	StatusProcessed             Status = "PROCESSED"
	StatusNonValidInvoiceNumber Status = "NON_VALID_INVOICE_NUMBER"
	StatusTimeout               Status = "TIMEOUT"
	StatusCancelled             Status = "CANCELLED"
	// StatusNotFound is only ever pushed to clients; it is never stored.
	StatusNotFound Status = "NOT_FOUND"
)

// Partition is the fixed partition key shared by every transaction record.
const Partition = "#transaction"

// Transaction is one upload attempt, stored in the invoices table next to the invoices themselves.
type Transaction struct {
	PK            string `dynamodbav:"pk"`                // always Partition
	TransactionID string `dynamodbav:"sk"`                // also the S3 object key
	TTL           int64  `dynamodbav:"ttl"`               // expiresAt, epoch seconds; DynamoDB TTL attribute
	RequestID     string `dynamodbav:"requestId"`         // Lambda request that issued the URL
	Timestamp     int64  `dynamodbav:"timestamp"`         // createdAt, epoch millis
	ExpiresIn     int    `dynamodbav:"expiresIn"`         // time box in seconds
	ConnectionID  string `dynamodbav:"connectionId"`      // WebSocket connection to notify
	Endpoint      string `dynamodbav:"endpoint"`          // WebSocket management endpoint
	Status        Status `dynamodbav:"transactionStatus"` // see status.go for allowed moves
}

// ExpiresAt returns the instant after which the store may purge the record.
func (t Transaction) ExpiresAt() time.Time {
	return time.Unix(t.TTL, 0)
}

// CreatedAt returns the creation instant.
func (t Transaction) CreatedAt() time.Time {
	return time.UnixMilli(t.Timestamp)
}
