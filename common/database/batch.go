package database

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	MaxBatchWriteItems = 25
	MaxBatchGetKeys    = 100

	maxBatchAttempts = 5
	batchBackoffStep = 50 * time.Millisecond
)

// BatchWrite submits requests in chunks of 25 and re-submits unprocessed
// items until they drain or the attempts run out.
func BatchWrite(ctx context.Context, api DynamoDBAPI, table string, requests []types.WriteRequest) error {
	for start := 0; start < len(requests); start += MaxBatchWriteItems {
		end := min(start+MaxBatchWriteItems, len(requests))

		pending := map[string][]types.WriteRequest{table: requests[start:end]}
		for attempt := 1; len(pending) > 0; attempt++ {
			if attempt > maxBatchAttempts {
				return fmt.Errorf("batch write: %d items still unprocessed after %d attempts", len(pending[table]), maxBatchAttempts)
			}

			out, err := api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("batch write: %w", err)
			}

			pending = out.UnprocessedItems
			if len(pending) > 0 {
				if err := backoff(ctx, attempt); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// PutRequests turns marshalled items into write requests.
func PutRequests(items []map[string]types.AttributeValue) []types.WriteRequest {
	requests := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	return requests
}

// BatchGet fetches keys in chunks of 100. Missing items are simply absent
// from the result; order is not preserved.
func BatchGet(ctx context.Context, api DynamoDBAPI, table string, keys []map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	items := make([]map[string]types.AttributeValue, 0, len(keys))

	for start := 0; start < len(keys); start += MaxBatchGetKeys {
		end := min(start+MaxBatchGetKeys, len(keys))

		pending := map[string]types.KeysAndAttributes{table: {Keys: keys[start:end]}}
		for attempt := 1; len(pending) > 0; attempt++ {
			if attempt > maxBatchAttempts {
				return nil, fmt.Errorf("batch get: keys still unprocessed after %d attempts", maxBatchAttempts)
			}

			out, err := api.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
			if err != nil {
				return nil, fmt.Errorf("batch get: %w", err)
			}

			items = append(items, out.Responses[table]...)

			pending = out.UnprocessedKeys
			if len(pending) > 0 {
				if err := backoff(ctx, attempt); err != nil {
					return nil, err
				}
			}
		}
	}

	return items, nil
}

// QueryAll follows LastEvaluatedKey until the result set is exhausted.
func QueryAll(ctx context.Context, api DynamoDBAPI, input *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue

	params := *input
	for {
		out, err := api.Query(ctx, &params)
		if err != nil {
			return nil, err
		}

		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		params.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// ScanAll follows LastEvaluatedKey until the table is exhausted.
func ScanAll(ctx context.Context, api DynamoDBAPI, input *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue

	params := *input
	for {
		out, err := api.Scan(ctx, &params)
		if err != nil {
			return nil, err
		}

		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		params.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt) * batchBackoffStep)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
