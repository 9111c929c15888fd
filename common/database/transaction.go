package database

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const maxTransactionItems = 100

// TransactionBuilder collects writes that commit or fail together.
type TransactionBuilder struct {
	items []types.TransactWriteItem
	limit int
}

func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{
		items: make([]types.TransactWriteItem, 0),
		limit: maxTransactionItems,
	}
}

func (tb *TransactionBuilder) AddUpdate(item types.Update) error {
	return tb.add(types.TransactWriteItem{Update: &item})
}

func (tb *TransactionBuilder) add(item types.TransactWriteItem) error {
	if len(tb.items) >= tb.limit {
		return fmt.Errorf("transaction limit exceeded: %d items", tb.limit)
	}
	tb.items = append(tb.items, item)
	return nil
}

func (tb *TransactionBuilder) Execute(ctx context.Context, client DynamoDBAPI) error {
	if len(tb.items) == 0 {
		return fmt.Errorf("no items in transaction")
	}

	_, err := client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: tb.items,
	})
	return err
}

func (tb *TransactionBuilder) Count() int {
	return len(tb.items)
}
