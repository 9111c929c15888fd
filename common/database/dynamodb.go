package database

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/Sakethtadimeti/checkin-app/common/config"
)

// DynamoDBAPI is the subset of *dynamodb.Client the repositories use.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
}

var _ DynamoDBAPI = (*dynamodb.Client)(nil)

// DynamoDBClient is built once in the entry point and handed to every repository.
type DynamoDBClient struct {
	Client        DynamoDBAPI
	UsersTable    string
	CheckInsTable string
}

func NewDynamoDBClient(ctx context.Context, cfg *config.Config) (*DynamoDBClient, error) {
	opts := []func(*aws_config.LoadOptions) error{
		aws_config.WithRegion(cfg.AWS.Region),
	}

	if cfg.DynamoDB.UseLocalEndpoint {
		// Local DynamoDB for development
		accessKey, secretKey := cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey
		if accessKey == "" {
			accessKey, secretKey = "dummy", "dummy"
		}
		opts = append(opts,
			aws_config.WithBaseEndpoint(cfg.AWS.Endpoint),
			aws_config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
			),
		)
	} else if cfg.AWS.AccessKeyID != "" {
		opts = append(opts, aws_config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, ""),
		))
	}

	awsCfg, err := aws_config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDB.MaxRetries > 0 {
			o.RetryMaxAttempts = cfg.DynamoDB.MaxRetries
		}
	})

	return NewWithAPI(client, cfg.DynamoDB.UsersTable, cfg.DynamoDB.CheckInsTable), nil
}

// NewWithAPI wraps any DynamoDBAPI implementation, e.g. an in-memory store in tests.
func NewWithAPI(api DynamoDBAPI, usersTable, checkInsTable string) *DynamoDBClient {
	return &DynamoDBClient{
		Client:        api,
		UsersTable:    usersTable,
		CheckInsTable: checkInsTable,
	}
}

// Ping checks that the check-ins table is reachable.
func (c *DynamoDBClient) Ping(ctx context.Context) error {
	_, err := c.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(c.CheckInsTable),
	})
	return err
}
