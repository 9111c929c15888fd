// Package dynamotest is an in-memory DynamoDBAPI for repository tests.
//
// It understands the expression forms the repositories emit: equality and
// begins_with key conditions, attribute_exists / attribute_not_exists and
// equality conditions joined by AND, and SET update expressions with
// if_not_exists. Anything else returns an error so a test fails loudly.
package dynamotest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type keyPair struct {
	hash string
	rang string
}

type table struct {
	name    string
	key     keyPair
	indexes map[string]keyPair
	items   map[string]map[string]types.AttributeValue
}

type Store struct {
	mu       sync.Mutex
	tables   map[string]*table
	failures map[string]error
	calls    map[string]int

	unprocessedWrites int
}

func New() *Store {
	return &Store{
		tables:   make(map[string]*table),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// FailOn makes every later call to op return err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// LeaveUnprocessed makes the next BatchWriteItem call report its last n requests as unprocessed.
func (s *Store) LeaveUnprocessed(n int) {
	s.mu.Lock()
	s.unprocessedWrites = n
	s.mu.Unlock()
}

// Calls returns how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Items returns a snapshot of a table ordered by primary key.
func (s *Store) Items(tableName string) []map[string]types.AttributeValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[tableName]
	if !ok {
		return nil
	}
	return t.sorted(t.key, nil)
}

// Seed stores an item directly, bypassing conditions.
func (s *Store) Seed(tableName string, item map[string]types.AttributeValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(tableName)
	if err != nil {
		return err
	}
	k, err := t.itemKey(item)
	if err != nil {
		return err
	}
	t.items[k] = clone(item)
	return nil
}

func (s *Store) begin(op string) error {
	s.calls[op]++
	return s.failures[op]
}

func (s *Store) table(name string) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found: " + name)}
	}
	return t, nil
}

func (s *Store) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("CreateTable"); err != nil {
		return nil, err
	}

	name := aws.ToString(in.TableName)
	if _, exists := s.tables[name]; exists {
		return nil, &types.ResourceInUseException{Message: aws.String("table exists: " + name)}
	}

	t := &table{
		name:    name,
		key:     schemaKeys(in.KeySchema),
		indexes: make(map[string]keyPair),
		items:   make(map[string]map[string]types.AttributeValue),
	}
	for _, gsi := range in.GlobalSecondaryIndexes {
		t.indexes[aws.ToString(gsi.IndexName)] = schemaKeys(gsi.KeySchema)
	}
	s.tables[name] = t

	return &dynamodb.CreateTableOutput{TableDescription: t.describe()}, nil
}

func (s *Store) DeleteTable(ctx context.Context, in *dynamodb.DeleteTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("DeleteTable"); err != nil {
		return nil, err
	}

	t, err := s.table(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	delete(s.tables, t.name)
	return &dynamodb.DeleteTableOutput{TableDescription: t.describe()}, nil
}

func (s *Store) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("DescribeTable"); err != nil {
		return nil, err
	}

	t, err := s.table(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{Table: t.describe()}, nil
}

func (s *Store) ListTables(ctx context.Context, in *dynamodb.ListTablesInput, _ ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("ListTables"); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return &dynamodb.ListTablesOutput{TableNames: names}, nil
}

func (s *Store) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("GetItem"); err != nil {
		return nil, err
	}

	t, err := s.table(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	k, err := t.itemKey(in.Key)
	if err != nil {
		return nil, err
	}

	out := &dynamodb.GetItemOutput{}
	if item, ok := t.items[k]; ok {
		out.Item = clone(item)
	}
	return out, nil
}

func (s *Store) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("PutItem"); err != nil {
		return nil, err
	}

	t, err := s.table(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	k, err := t.itemKey(in.Item)
	if err != nil {
		return nil, err
	}

	ok, err := evalCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, t.items[k])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}

	t.items[k] = clone(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (s *Store) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("UpdateItem"); err != nil {
		return nil, err
	}

	t, err := s.table(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}

	updated, failed, err := t.prepareUpdate(in.Key, in.UpdateExpression, in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if failed {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}

	k, _ := t.itemKey(in.Key)
	t.items[k] = updated

	out := &dynamodb.UpdateItemOutput{}
	if in.ReturnValues == types.ReturnValueAllNew {
		out.Attributes = clone(updated)
	}
	return out, nil
}

func (s *Store) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("DeleteItem"); err != nil {
		return nil, err
	}

	t, err := s.table(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	k, err := t.itemKey(in.Key)
	if err != nil {
		return nil, err
	}

	existing := t.items[k]
	ok, err := evalCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, existing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}

	delete(t.items, k)

	out := &dynamodb.DeleteItemOutput{}
	if in.ReturnValues == types.ReturnValueAllOld && existing != nil {
		out.Attributes = clone(existing)
	}
	return out, nil
}

func (s *Store) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("Query"); err != nil {
		return nil, err
	}

	t, err := s.table(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}

	order := t.key
	if in.IndexName != nil {
		idx, ok := t.indexes[aws.ToString(in.IndexName)]
		if !ok {
			return nil, fmt.Errorf("dynamotest: unknown index %s", aws.ToString(in.IndexName))
		}
		order = idx
	}

	clauses, err := parseKeyCondition(aws.ToString(in.KeyConditionExpression), in.ExpressionAttributeNames)
	if err != nil {
		return nil, err
	}

	matches := t.sorted(order, func(item map[string]types.AttributeValue) bool {
		for _, c := range clauses {
			if !c.match(item, in.ExpressionAttributeValues) {
				return false
			}
		}
		return true
	})

	if in.ScanIndexForward != nil && !*in.ScanIndexForward {
		for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
			matches[i], matches[j] = matches[j], matches[i]
		}
	}

	page, last := t.page(matches, in.ExclusiveStartKey, in.Limit)
	return &dynamodb.QueryOutput{Items: page, Count: int32(len(page)), LastEvaluatedKey: last}, nil
}

func (s *Store) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("Scan"); err != nil {
		return nil, err
	}

	t, err := s.table(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	if in.FilterExpression != nil {
		return nil, fmt.Errorf("dynamotest: filter expressions are not supported")
	}

	page, last := t.page(t.sorted(t.key, nil), in.ExclusiveStartKey, in.Limit)
	return &dynamodb.ScanOutput{Items: page, Count: int32(len(page)), LastEvaluatedKey: last}, nil
}

func (s *Store) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("BatchGetItem"); err != nil {
		return nil, err
	}

	total := 0
	for _, ka := range in.RequestItems {
		total += len(ka.Keys)
	}
	if total > 100 {
		return nil, fmt.Errorf("dynamotest: BatchGetItem accepts at most 100 keys, got %d", total)
	}

	out := &dynamodb.BatchGetItemOutput{Responses: make(map[string][]map[string]types.AttributeValue)}
	for name, ka := range in.RequestItems {
		t, err := s.table(name)
		if err != nil {
			return nil, err
		}
		for _, key := range ka.Keys {
			k, err := t.itemKey(key)
			if err != nil {
				return nil, err
			}
			if item, ok := t.items[k]; ok {
				out.Responses[name] = append(out.Responses[name], clone(item))
			}
		}
	}
	return out, nil
}

func (s *Store) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("BatchWriteItem"); err != nil {
		return nil, err
	}

	total := 0
	for _, reqs := range in.RequestItems {
		total += len(reqs)
	}
	if total > 25 {
		return nil, fmt.Errorf("dynamotest: BatchWriteItem accepts at most 25 requests, got %d", total)
	}

	out := &dynamodb.BatchWriteItemOutput{}
	for name, reqs := range in.RequestItems {
		t, err := s.table(name)
		if err != nil {
			return nil, err
		}

		if s.unprocessedWrites > 0 {
			keep := max(len(reqs)-s.unprocessedWrites, 0)
			out.UnprocessedItems = map[string][]types.WriteRequest{name: reqs[keep:]}
			reqs = reqs[:keep]
			s.unprocessedWrites = 0
		}

		for _, req := range reqs {
			switch {
			case req.PutRequest != nil:
				k, err := t.itemKey(req.PutRequest.Item)
				if err != nil {
					return nil, err
				}
				t.items[k] = clone(req.PutRequest.Item)
			case req.DeleteRequest != nil:
				k, err := t.itemKey(req.DeleteRequest.Key)
				if err != nil {
					return nil, err
				}
				delete(t.items, k)
			}
		}
	}
	return out, nil
}

func (s *Store) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin("TransactWriteItems"); err != nil {
		return nil, err
	}
	if len(in.TransactItems) > 100 {
		return nil, fmt.Errorf("dynamotest: TransactWriteItems accepts at most 100 items")
	}

	type write struct {
		t      *table
		key    string
		item   map[string]types.AttributeValue
		delete bool
	}

	writes := make([]write, 0, len(in.TransactItems))
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	cancelled := false

	for i, ti := range in.TransactItems {
		reasons[i] = types.CancellationReason{Code: aws.String("None")}

		var (
			w      write
			passed bool
			err    error
		)

		switch {
		case ti.Put != nil:
			if w.t, err = s.table(aws.ToString(ti.Put.TableName)); err != nil {
				return nil, err
			}
			if w.key, err = w.t.itemKey(ti.Put.Item); err != nil {
				return nil, err
			}
			passed, err = evalCondition(ti.Put.ConditionExpression, ti.Put.ExpressionAttributeNames, ti.Put.ExpressionAttributeValues, w.t.items[w.key])
			w.item = clone(ti.Put.Item)
		case ti.Update != nil:
			if w.t, err = s.table(aws.ToString(ti.Update.TableName)); err != nil {
				return nil, err
			}
			if w.key, err = w.t.itemKey(ti.Update.Key); err != nil {
				return nil, err
			}
			var failed bool
			w.item, failed, err = w.t.prepareUpdate(ti.Update.Key, ti.Update.UpdateExpression, ti.Update.ConditionExpression, ti.Update.ExpressionAttributeNames, ti.Update.ExpressionAttributeValues)
			passed = !failed
		case ti.Delete != nil:
			if w.t, err = s.table(aws.ToString(ti.Delete.TableName)); err != nil {
				return nil, err
			}
			if w.key, err = w.t.itemKey(ti.Delete.Key); err != nil {
				return nil, err
			}
			passed, err = evalCondition(ti.Delete.ConditionExpression, ti.Delete.ExpressionAttributeNames, ti.Delete.ExpressionAttributeValues, w.t.items[w.key])
			w.delete = true
		case ti.ConditionCheck != nil:
			if w.t, err = s.table(aws.ToString(ti.ConditionCheck.TableName)); err != nil {
				return nil, err
			}
			if w.key, err = w.t.itemKey(ti.ConditionCheck.Key); err != nil {
				return nil, err
			}
			passed, err = evalCondition(ti.ConditionCheck.ConditionExpression, ti.ConditionCheck.ExpressionAttributeNames, ti.ConditionCheck.ExpressionAttributeValues, w.t.items[w.key])
			w.t = nil
		default:
			return nil, fmt.Errorf("dynamotest: empty transact item %d", i)
		}

		if err != nil {
			return nil, err
		}
		if !passed {
			cancelled = true
			reasons[i].Code = aws.String("ConditionalCheckFailed")
			continue
		}
		if w.t != nil {
			writes = append(writes, w)
		}
	}

	if cancelled {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, w := range writes {
		if w.delete {
			delete(w.t.items, w.key)
			continue
		}
		w.t.items[w.key] = w.item
	}

	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// prepareUpdate returns the item as it would look after the update, and
// whether the condition failed. It does not store anything.
func (t *table) prepareUpdate(
	key map[string]types.AttributeValue,
	updateExpr, conditionExpr *string,
	names map[string]string,
	values map[string]types.AttributeValue,
) (map[string]types.AttributeValue, bool, error) {
	k, err := t.itemKey(key)
	if err != nil {
		return nil, false, err
	}

	existing := t.items[k]
	ok, err := evalCondition(conditionExpr, names, values, existing)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, true, nil
	}

	updated := clone(existing)
	if updated == nil {
		updated = clone(key)
	}
	if err := applySet(aws.ToString(updateExpr), names, values, updated); err != nil {
		return nil, false, err
	}
	return updated, false, nil
}

func (t *table) itemKey(item map[string]types.AttributeValue) (string, error) {
	hash, ok := stringValue(item[t.key.hash])
	if !ok {
		return "", fmt.Errorf("dynamotest: %s: missing hash key %s", t.name, t.key.hash)
	}
	if t.key.rang == "" {
		return hash, nil
	}
	rng, ok := stringValue(item[t.key.rang])
	if !ok {
		return "", fmt.Errorf("dynamotest: %s: missing range key %s", t.name, t.key.rang)
	}
	return hash + "\x00" + rng, nil
}

func (t *table) keyAttributes(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	key := map[string]types.AttributeValue{t.key.hash: item[t.key.hash]}
	if t.key.rang != "" {
		key[t.key.rang] = item[t.key.rang]
	}
	return key
}

// sorted returns matching items ordered by the given key pair, then by primary key.
func (t *table) sorted(order keyPair, keep func(map[string]types.AttributeValue) bool) []map[string]types.AttributeValue {
	type entry struct {
		hash, rang, primary string
		item                map[string]types.AttributeValue
	}

	entries := make([]entry, 0, len(t.items))
	for primary, item := range t.items {
		if keep != nil && !keep(item) {
			continue
		}
		h, _ := stringValue(item[order.hash])
		r, _ := stringValue(item[order.rang])
		entries = append(entries, entry{hash: h, rang: r, primary: primary, item: item})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].hash != entries[j].hash {
			return entries[i].hash < entries[j].hash
		}
		if entries[i].rang != entries[j].rang {
			return entries[i].rang < entries[j].rang
		}
		return entries[i].primary < entries[j].primary
	})

	items := make([]map[string]types.AttributeValue, 0, len(entries))
	for _, e := range entries {
		items = append(items, clone(e.item))
	}
	return items
}

func (t *table) page(items []map[string]types.AttributeValue, start map[string]types.AttributeValue, limit *int32) ([]map[string]types.AttributeValue, map[string]types.AttributeValue) {
	if len(start) > 0 {
		startKey, err := t.itemKey(start)
		if err == nil {
			for i, item := range items {
				if k, _ := t.itemKey(item); k == startKey {
					items = items[i+1:]
					break
				}
			}
		}
	}

	if limit == nil || int(*limit) >= len(items) {
		return items, nil
	}

	page := items[:*limit]
	return page, t.keyAttributes(page[len(page)-1])
}

func (t *table) describe() *types.TableDescription {
	desc := &types.TableDescription{
		TableName:   aws.String(t.name),
		TableStatus: types.TableStatusActive,
		ItemCount:   aws.Int64(int64(len(t.items))),
	}

	names := make([]string, 0, len(t.indexes))
	for name := range t.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		desc.GlobalSecondaryIndexes = append(desc.GlobalSecondaryIndexes, types.GlobalSecondaryIndexDescription{
			IndexName:   aws.String(name),
			IndexStatus: types.IndexStatusActive,
		})
	}
	return desc
}

func schemaKeys(schema []types.KeySchemaElement) keyPair {
	var kp keyPair
	for _, el := range schema {
		switch el.KeyType {
		case types.KeyTypeHash:
			kp.hash = aws.ToString(el.AttributeName)
		case types.KeyTypeRange:
			kp.rang = aws.ToString(el.AttributeName)
		}
	}
	return kp
}

func clone(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func stringValue(av types.AttributeValue) (string, bool) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, true
	case *types.AttributeValueMemberN:
		return v.Value, true
	default:
		return "", false
	}
}

func equalValues(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	default:
		return false
	}
}

func resolveName(name string, names map[string]string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "#") {
		if resolved, ok := names[name]; ok {
			return resolved
		}
	}
	return name
}

func lookupValue(placeholder string, values map[string]types.AttributeValue) (types.AttributeValue, error) {
	placeholder = strings.TrimSpace(placeholder)
	v, ok := values[placeholder]
	if !ok {
		return nil, fmt.Errorf("dynamotest: missing expression value %s", placeholder)
	}
	return v, nil
}
