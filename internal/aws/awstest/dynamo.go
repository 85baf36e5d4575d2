// Package awstest provides in-memory fakes of the AWS client subsets in package aws.
// The DynamoDB fake understands exactly the expression shapes the stores emit.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-invoice-importflow/internal/aws"
)

var _ aws.DynamoDBAPI = (*FakeDynamo)(nil)

// Item is a raw DynamoDB item.
type Item = map[string]types.AttributeValue

// FakeDynamo stores items per table keyed by pk and sk.
type FakeDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]Item
	errs   map[string]error
	calls  map[string]int

	// BeforeWrite runs with the lock released right before a conditional write is evaluated.
	// Tests use it to interleave a competing writer.
	BeforeWrite func(op string)
}

// NewFakeDynamo returns an empty fake.
func NewFakeDynamo() *FakeDynamo {
	return &FakeDynamo{
		tables: map[string]map[string]Item{},
		errs:   map[string]error{},
		calls:  map[string]int{},
	}
}

// FailOn makes every subsequent call to op return err. A nil err clears the failure.
func (f *FakeDynamo) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

// Calls returns how many times op was invoked.
func (f *FakeDynamo) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Seed writes item unconditionally.
func (f *FakeDynamo) Seed(table string, item Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.table(table)[itemKey(item)] = clone(item)
}

// Get returns a copy of the stored item, or nil.
func (f *FakeDynamo) Get(table, pk, sk string) Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.table(table)[pk+"|"+sk]
	if !ok {
		return nil
	}
	return clone(item)
}

// Delete removes an item, as the TTL sweeper would.
func (f *FakeDynamo) Delete(table, pk, sk string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.table(table), pk+"|"+sk)
}

// Len returns the number of items in table.
func (f *FakeDynamo) Len(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.table(table))
}

func (f *FakeDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	if err := f.enter("PutItem"); err != nil {
		return nil, err
	}
	f.hook("PutItem")

	f.mu.Lock()
	defer f.mu.Unlock()
	tbl := f.table(*params.TableName)
	k := itemKey(params.Item)
	ok, err := evalCondition(params.ConditionExpression, tbl[k], params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
	}
	tbl[k] = clone(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (f *FakeDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	if err := f.enter("GetItem"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.table(*params.TableName)[itemKey(params.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: clone(item)}, nil
}

func (f *FakeDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	if err := f.enter("UpdateItem"); err != nil {
		return nil, err
	}
	f.hook("UpdateItem")

	f.mu.Lock()
	defer f.mu.Unlock()
	tbl := f.table(*params.TableName)
	k := itemKey(params.Key)
	current := tbl[k]
	ok, err := evalCondition(params.ConditionExpression, current, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
	}
	updated, err := applyUpdate(current, params.Key, params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	tbl[k] = updated
	return &dyn.UpdateItemOutput{Attributes: clone(updated)}, nil
}

// Query supports "pk = :pk" key conditions with an optional single-clause filter.
// Results are ordered by sk and never paginated.
func (f *FakeDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	if err := f.enter("Query"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if params.KeyConditionExpression == nil || strings.TrimSpace(*params.KeyConditionExpression) != "pk = :pk" {
		return nil, fmt.Errorf("awstest: unsupported key condition %v", params.KeyConditionExpression)
	}
	pk, ok := params.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("awstest: :pk must be a string")
	}

	var keys []string
	for k, item := range f.table(*params.TableName) {
		if attrString(item["pk"]) != pk.Value {
			continue
		}
		match, err := evalCondition(params.FilterExpression, item, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if match {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}
	if params.Limit != nil && int(*params.Limit) < len(keys) {
		keys = keys[:*params.Limit]
	}

	out := &dyn.QueryOutput{}
	for _, k := range keys {
		out.Items = append(out.Items, clone(f.tables[*params.TableName][k]))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

// TransactWriteItems checks every condition first and applies nothing unless all pass.
func (f *FakeDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	if err := f.enter("TransactWriteItems"); err != nil {
		return nil, err
	}
	f.hook("TransactWriteItems")

	f.mu.Lock()
	defer f.mu.Unlock()

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	for i, it := range params.TransactItems {
		var (
			ok  bool
			err error
		)
		switch {
		case it.Put != nil:
			p := it.Put
			ok, err = evalCondition(p.ConditionExpression, f.table(*p.TableName)[itemKey(p.Item)], p.ExpressionAttributeNames, p.ExpressionAttributeValues)
		case it.Update != nil:
			u := it.Update
			ok, err = evalCondition(u.ConditionExpression, f.table(*u.TableName)[itemKey(u.Key)], u.ExpressionAttributeNames, u.ExpressionAttributeValues)
		default:
			return nil, errors.New("awstest: only Put and Update are supported in transactions")
		}
		if err != nil {
			return nil, err
		}
		if ok {
			reasons[i] = types.CancellationReason{Code: strPtr("None")}
			continue
		}
		failed = true
		reasons[i] = types.CancellationReason{Code: strPtr("ConditionalCheckFailed"), Message: strPtr("The conditional request failed")}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             strPtr("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, it := range params.TransactItems {
		if p := it.Put; p != nil {
			f.table(*p.TableName)[itemKey(p.Item)] = clone(p.Item)
			continue
		}
		u := it.Update
		tbl := f.table(*u.TableName)
		k := itemKey(u.Key)
		updated, err := applyUpdate(tbl[k], u.Key, u.UpdateExpression, u.ExpressionAttributeNames, u.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		tbl[k] = updated
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (f *FakeDynamo) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.errs[op]
}

func (f *FakeDynamo) hook(op string) {
	if f.BeforeWrite != nil {
		f.BeforeWrite(op)
	}
}

func (f *FakeDynamo) table(name string) map[string]Item {
	tbl, ok := f.tables[name]
	if !ok {
		tbl = map[string]Item{}
		f.tables[name] = tbl
	}
	return tbl
}

func itemKey(item Item) string {
	return attrString(item["pk"]) + "|" + attrString(item["sk"])
}

func attrString(v types.AttributeValue) string {
	switch av := v.(type) {
	case *types.AttributeValueMemberS:
		return av.Value
	case *types.AttributeValueMemberN:
		return av.Value
	}
	return ""
}

// evalCondition handles AND-joined clauses of attribute_exists, attribute_not_exists,
// "=" and "<=" comparisons. A nil expression always passes.
func evalCondition(expr *string, item Item, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return true, nil
	}
	for _, clause := range strings.Split(*expr, " AND ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "attribute_not_exists(") && strings.HasSuffix(clause, ")"):
			attr := resolve(clause[len("attribute_not_exists("):len(clause)-1], names)
			if item != nil && item[attr] != nil {
				return false, nil
			}
		case strings.HasPrefix(clause, "attribute_exists(") && strings.HasSuffix(clause, ")"):
			attr := resolve(clause[len("attribute_exists("):len(clause)-1], names)
			if item == nil || item[attr] == nil {
				return false, nil
			}
		default:
			ok, err := compare(clause, item, names, values)
			if err != nil || !ok {
				return ok, err
			}
		}
	}
	return true, nil
}

func compare(clause string, item Item, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	for _, op := range []string{"<=", "="} {
		parts := strings.SplitN(clause, " "+op+" ", 2)
		if len(parts) != 2 {
			continue
		}
		attr := resolve(strings.TrimSpace(parts[0]), names)
		want, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return false, fmt.Errorf("awstest: missing value %s", parts[1])
		}
		if item == nil || item[attr] == nil {
			return false, nil
		}
		got := item[attr]
		if op == "=" {
			return attrString(got) == attrString(want), nil
		}
		gn, err1 := strconv.ParseFloat(attrString(got), 64)
		wn, err2 := strconv.ParseFloat(attrString(want), 64)
		if err1 != nil || err2 != nil {
			return attrString(got) <= attrString(want), nil
		}
		return gn <= wn, nil
	}
	return false, fmt.Errorf("awstest: unsupported condition %q", clause)
}

// applyUpdate handles "SET a = :x, #b = :y" expressions.
func applyUpdate(current, key Item, expr *string, names map[string]string, values map[string]types.AttributeValue) (Item, error) {
	if expr == nil {
		return nil, errors.New("awstest: update expression required")
	}
	e := strings.TrimSpace(*expr)
	if !strings.HasPrefix(e, "SET ") {
		return nil, fmt.Errorf("awstest: unsupported update %q", e)
	}
	out := clone(current)
	if out == nil {
		out = clone(key)
	}
	for _, assign := range strings.Split(e[len("SET "):], ",") {
		parts := strings.SplitN(assign, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("awstest: bad assignment %q", assign)
		}
		v, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return nil, fmt.Errorf("awstest: missing value %s", parts[1])
		}
		out[resolve(strings.TrimSpace(parts[0]), names)] = v
	}
	return out, nil
}

func resolve(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if n, ok := names[name]; ok {
			return n
		}
	}
	return name
}

func clone(item Item) Item {
	if item == nil {
		return nil
	}
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func strPtr(s string) *string { return &s }
