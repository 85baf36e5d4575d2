package invoices

import (
	"strings"
	"time"
)

// PartitionPrefix prefixes the customer name to form an invoice partition key.
const PartitionPrefix = "#invoice_"

// Partition returns the partition key holding every invoice of customer.
func Partition(customer string) string {
	return PartitionPrefix + customer
}

// File is the JSON document a client uploads through the pre-signed URL.
type File struct {
	InvoiceNumber string  `json:"invoiceNumber"`
	CustomerName  string  `json:"customerName" validate:"required"`
	TotalValue    float64 `json:"totalValue" validate:"gte=0"`
	ProductID     string  `json:"productId" validate:"required"`
	Quantity      int     `json:"quantity" validate:"gte=1"`
}

// Invoice is the committed record, stored in the invoices table under the customer's partition.
type Invoice struct {
	PK            string  `dynamodbav:"pk" json:"-"`
	InvoiceNumber string  `dynamodbav:"sk" json:"invoiceNumber"`
	TTL           int64   `dynamodbav:"ttl" json:"-"` // 0: invoices never expire
	TotalValue    float64 `dynamodbav:"totalValue" json:"totalValue"`
	ProductID     string  `dynamodbav:"productId" json:"productId"`
	Quantity      int     `dynamodbav:"quantity" json:"quantity"`
	TransactionID string  `dynamodbav:"transactionId" json:"transactionId"`
	CreatedAt     int64   `dynamodbav:"createdAt" json:"createdAt"` // epoch millis
}

// New builds the invoice committed for file by transaction txID.
func New(file File, txID string, now time.Time) Invoice {
	return Invoice{
		PK:            Partition(file.CustomerName),
		InvoiceNumber: file.InvoiceNumber,
		TotalValue:    file.TotalValue,
		ProductID:     file.ProductID,
		Quantity:      file.Quantity,
		TransactionID: txID,
		CreatedAt:     now.UnixMilli(),
	}
}

// CustomerName recovers the customer from the partition key.
func (i Invoice) CustomerName() string {
	return strings.TrimPrefix(i.PK, PartitionPrefix)
}
