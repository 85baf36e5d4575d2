package invoices

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-invoice-importflow/internal/aws"
)

var (
	// ErrNotFound is returned when no invoice matches the customer and number.
	ErrNotFound = errors.New("invoice not found")
	// ErrAlreadyExists is returned by Create when the customer already has an invoice with that number.
	ErrAlreadyExists = errors.New("invoice already exists")
	// ErrCommitConflict is returned by Create when one of the extra writes lost its condition.
	ErrCommitConflict = errors.New("commit condition failed")
)

// Store reads and writes invoice records.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a new invoices Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Create writes inv together with the extra items in a single transaction: either
// every write lands or none does. An existing invoice yields ErrAlreadyExists; a failed
// condition on any extra item yields ErrCommitConflict.
func (s *Store) Create(ctx context.Context, inv Invoice, extra ...types.TransactWriteItem) error {
	item, err := attributevalue.MarshalMap(inv)
	if err != nil {
		return fmt.Errorf("marshal invoice: %w", err)
	}

	txItems := make([]types.TransactWriteItem, 0, len(extra)+1)
	txItems = append(txItems, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &s.tableName,
			Item:                item,
			ConditionExpression: awsString("attribute_not_exists(pk)"),
		},
	})
	txItems = append(txItems, extra...)

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: txItems})
	if err == nil {
		return nil
	}

	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for i, r := range tce.CancellationReasons {
			if r.Code == nil || *r.Code != "ConditionalCheckFailed" {
				continue
			}
			if i == 0 {
				return fmt.Errorf("%w: %s/%s", ErrAlreadyExists, inv.CustomerName(), inv.InvoiceNumber)
			}
			return ErrCommitConflict
		}
	}
	return fmt.Errorf("transact write: %w", err)
}

// Get fetches one invoice. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, customer, number string) (*Invoice, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: Partition(customer)},
			"sk": &types.AttributeValueMemberS{Value: number},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var inv Invoice
	if err := attributevalue.UnmarshalMap(out.Item, &inv); err != nil {
		return nil, fmt.Errorf("unmarshal invoice: %w", err)
	}
	return &inv, nil
}

// ListByCustomer returns every invoice of customer ordered by invoice number.
func (s *Store) ListByCustomer(ctx context.Context, customer string) ([]Invoice, error) {
	var (
		out      []Invoice
		startKey map[string]types.AttributeValue
	)
	for {
		page, err := s.client.Query(ctx, &dyn.QueryInput{
			TableName:              &s.tableName,
			KeyConditionExpression: awsString("pk = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: Partition(customer)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query invoices: %w", err)
		}
		var batch []Invoice
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal invoices: %w", err)
		}
		out = append(out, batch...)
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		startKey = page.LastEvaluatedKey
	}
}

func awsString(s string) *string { return &s }
