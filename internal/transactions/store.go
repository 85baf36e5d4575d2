package transactions

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
)

var (
	// ErrNotFound is returned by Get when the record is absent or already purged by TTL.
	ErrNotFound = errors.New("transaction not found")
	// ErrDuplicateKey is returned by Create when the key already exists. Callers must not retry with the same key.
	ErrDuplicateKey = errors.New("transaction already exists")
	// ErrInvalidTransition is returned when a caller asks for a move the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store encapsulates operations on transaction records.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new transactions Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// TableName returns the table the store writes to.
func (s *Store) TableName() string { return s.tableName }

// Create inserts a new transaction. It never overwrites: an existing key yields ErrDuplicateKey.
func (s *Store) Create(ctx context.Context, tx Transaction) error {
	tx.PK = Partition
	if tx.Timestamp == 0 {
		tx.Timestamp = s.nowFunc().UnixMilli()
	}

	item, err := attributevalue.MarshalMap(tx)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(pk)"),
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, tx.TransactionID)
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Get fetches a transaction by id. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (*Transaction, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            key(id),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var tx Transaction
	if err := attributevalue.UnmarshalMap(out.Item, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return &tx, nil
}

// UpdateStatus sets the status of an existing record regardless of its current status.
// Returns (false, nil) when the record no longer exists. It does not enforce the state
// machine; writers that care about ordering use Transition.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) (bool, error) {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      key(id),
		UpdateExpression:         awsString("SET #st = :status"),
		ConditionExpression:      awsString("attribute_exists(pk)"),
		ExpressionAttributeNames: map[string]string{"#st": "transactionStatus"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
		},
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return false, nil
		}
		return false, fmt.Errorf("update item: %w", err)
	}
	return true, nil
}

// Transition atomically moves a transaction from -> to. The write only lands if the
// record still exists and still holds from, so two concurrent deliveries cannot both win.
// Returns (false, nil) when the record is gone or another writer moved it first.
func (s *Store) Transition(ctx context.Context, id string, from, to Status) (bool, error) {
	update, err := s.transitionUpdate(id, from, to)
	if err != nil {
		return false, err
	}

	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 update.TableName,
		Key:                       update.Key,
		UpdateExpression:          update.UpdateExpression,
		ConditionExpression:       update.ConditionExpression,
		ExpressionAttributeNames:  update.ExpressionAttributeNames,
		ExpressionAttributeValues: update.ExpressionAttributeValues,
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return false, nil
		}
		return false, fmt.Errorf("update item: %w", err)
	}
	return true, nil
}

// TransitionItem returns the same conditional move as Transition, packaged for a
// TransactWriteItems call so it can commit together with other writes.
func (s *Store) TransitionItem(id string, from, to Status) (types.TransactWriteItem, error) {
	update, err := s.transitionUpdate(id, from, to)
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	return types.TransactWriteItem{Update: update}, nil
}

func (s *Store) transitionUpdate(id string, from, to Status) (*types.Update, error) {
	if !IsValidTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return &types.Update{
		TableName:                &s.tableName,
		Key:                      key(id),
		UpdateExpression:         awsString("SET #st = :to"),
		ConditionExpression:      awsString("attribute_exists(pk) AND #st = :from"),
		ExpressionAttributeNames: map[string]string{"#st": "transactionStatus"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":from": &types.AttributeValueMemberS{Value: string(from)},
			":to":   &types.AttributeValueMemberS{Value: string(to)},
		},
	}, nil
}

// ListExpired returns up to limit non-terminal transactions whose time box ended at or
// before now but which the TTL sweeper has not purged yet.
func (s *Store) ListExpired(ctx context.Context, now time.Time, limit int) ([]Transaction, error) {
	var (
		out      []Transaction
		startKey map[string]types.AttributeValue
	)
	for {
		page, err := s.client.Query(ctx, &dyn.QueryInput{
			TableName:                &s.tableName,
			KeyConditionExpression:   awsString("pk = :pk"),
			FilterExpression:         awsString("#ttl <= :now"),
			ExpressionAttributeNames: map[string]string{"#ttl": "ttl"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":  &types.AttributeValueMemberS{Value: Partition},
				":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query expired: %w", err)
		}

		var txs []Transaction
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &txs); err != nil {
			return nil, fmt.Errorf("unmarshal transactions: %w", err)
		}
		for _, tx := range txs {
			if IsTerminal(tx.Status) {
				continue
			}
			out = append(out, tx)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}

		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		startKey = page.LastEvaluatedKey
	}
}

func key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: Partition},
		"sk": &types.AttributeValueMemberS{Value: id},
	}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
