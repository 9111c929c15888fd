package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	EmailIndex     = "email-index"
	RoleIndex      = "role-index"
	ManagerIndex   = "managerId-index"
	CreatedByIndex = "created-by-index"
	UserTypeIndex  = "user-type-index"

	tableWaitTimeout = 2 * time.Minute
)

type Capacity struct {
	Read  int64
	Write int64
}

// TableDefinitions returns the users table and the single check-ins table.
// A zero capacity selects on-demand billing.
func TableDefinitions(usersTable, checkInsTable string, capacity Capacity) []*dynamodb.CreateTableInput {
	return []*dynamodb.CreateTableInput{
		{
			TableName: aws.String(usersTable),
			AttributeDefinitions: []types.AttributeDefinition{
				stringAttr("id"), stringAttr("email"), stringAttr("role"), stringAttr("managerId"),
			},
			KeySchema: []types.KeySchemaElement{hashKey("id")},
			GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
				index(EmailIndex, capacity, hashKey("email")),
				index(RoleIndex, capacity, hashKey("role")),
				index(ManagerIndex, capacity, hashKey("managerId")),
			},
			BillingMode:           billingMode(capacity),
			ProvisionedThroughput: throughput(capacity),
		},
		{
			TableName: aws.String(checkInsTable),
			AttributeDefinitions: []types.AttributeDefinition{
				stringAttr("PK"), stringAttr("SK"), stringAttr("createdBy"), stringAttr("userId"), stringAttr("type"),
			},
			KeySchema: []types.KeySchemaElement{hashKey("PK"), rangeKey("SK")},
			GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
				index(CreatedByIndex, capacity, hashKey("createdBy"), rangeKey("type")),
				index(UserTypeIndex, capacity, hashKey("userId"), rangeKey("type")),
			},
			BillingMode:           billingMode(capacity),
			ProvisionedThroughput: throughput(capacity),
		},
	}
}

type TableStatus struct {
	Name      string
	Status    string
	ItemCount int64
	Indexes   []string
	Exists    bool
}

// EnsureTables creates every missing table. Existing tables are left untouched.
// It returns the names of the tables it created.
func EnsureTables(ctx context.Context, api DynamoDBAPI, defs []*dynamodb.CreateTableInput, wait bool) ([]string, error) {
	var created []string

	for _, def := range defs {
		_, err := api.CreateTable(ctx, def)
		if err != nil {
			var inUse *types.ResourceInUseException
			if errors.As(err, &inUse) {
				continue
			}
			return created, fmt.Errorf("failed to create table %s: %w", aws.ToString(def.TableName), err)
		}
		created = append(created, aws.ToString(def.TableName))

		if wait {
			waiter := dynamodb.NewTableExistsWaiter(api)
			if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: def.TableName}, tableWaitTimeout); err != nil {
				return created, fmt.Errorf("table %s did not become active: %w", aws.ToString(def.TableName), err)
			}
		}
	}

	return created, nil
}

// DropTables deletes the named tables, ignoring ones that do not exist.
func DropTables(ctx context.Context, api DynamoDBAPI, names ...string) ([]string, error) {
	var dropped []string

	for _, name := range names {
		_, err := api.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)})
		if err != nil {
			var notFound *types.ResourceNotFoundException
			if errors.As(err, &notFound) {
				continue
			}
			return dropped, fmt.Errorf("failed to drop table %s: %w", name, err)
		}
		dropped = append(dropped, name)
	}

	return dropped, nil
}

func DescribeTables(ctx context.Context, api DynamoDBAPI, names ...string) ([]TableStatus, error) {
	statuses := make([]TableStatus, 0, len(names))

	for _, name := range names {
		out, err := api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
		if err != nil {
			var notFound *types.ResourceNotFoundException
			if errors.As(err, &notFound) {
				statuses = append(statuses, TableStatus{Name: name})
				continue
			}
			return nil, fmt.Errorf("failed to describe table %s: %w", name, err)
		}

		status := TableStatus{
			Name:      name,
			Status:    string(out.Table.TableStatus),
			ItemCount: aws.ToInt64(out.Table.ItemCount),
			Exists:    true,
		}
		for _, gsi := range out.Table.GlobalSecondaryIndexes {
			status.Indexes = append(status.Indexes, aws.ToString(gsi.IndexName))
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

func ListTables(ctx context.Context, api DynamoDBAPI) ([]string, error) {
	var names []string

	input := &dynamodb.ListTablesInput{}
	for {
		out, err := api.ListTables(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list tables: %w", err)
		}
		names = append(names, out.TableNames...)
		if out.LastEvaluatedTableName == nil {
			return names, nil
		}
		input.ExclusiveStartTableName = out.LastEvaluatedTableName
	}
}

func stringAttr(name string) types.AttributeDefinition {
	return types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS}
}

func hashKey(name string) types.KeySchemaElement {
	return types.KeySchemaElement{AttributeName: aws.String(name), KeyType: types.KeyTypeHash}
}

func rangeKey(name string) types.KeySchemaElement {
	return types.KeySchemaElement{AttributeName: aws.String(name), KeyType: types.KeyTypeRange}
}

func index(name string, capacity Capacity, keys ...types.KeySchemaElement) types.GlobalSecondaryIndex {
	return types.GlobalSecondaryIndex{
		IndexName:             aws.String(name),
		KeySchema:             keys,
		Projection:            &types.Projection{ProjectionType: types.ProjectionTypeAll},
		ProvisionedThroughput: throughput(capacity),
	}
}

func billingMode(capacity Capacity) types.BillingMode {
	if capacity.Read == 0 || capacity.Write == 0 {
		return types.BillingModePayPerRequest
	}
	return types.BillingModeProvisioned
}

func throughput(capacity Capacity) *types.ProvisionedThroughput {
	if capacity.Read == 0 || capacity.Write == 0 {
		return nil
	}
	return &types.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(capacity.Read),
		WriteCapacityUnits: aws.Int64(capacity.Write),
	}
}
