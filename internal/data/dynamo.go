package data

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
)

// DynamoConnector backs the cache with a DynamoDB table for the hosted
// deployment path, where no Redis is provisioned. The table uses a single
// string partition key "cache_key", a binary "value" attribute, and an
// "expires_at" epoch attribute configured as the table's TTL field.
type DynamoConnector struct {
	db    *dynamodb.DynamoDB
	table string
	now   func() time.Time
}

// NewDynamoConnector builds a connector from the ambient AWS configuration
// (credentials chain, AWS_REGION).
func NewDynamoConnector(table string) (*DynamoConnector, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return &DynamoConnector{db: dynamodb.New(sess), table: table, now: time.Now}, nil
}

func (d *DynamoConnector) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := d.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key: map[string]*dynamodb.AttributeValue{
			"cache_key": {S: aws.String(key)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dynamo get %s: %w", key, err)
	}
	if out.Item == nil {
		return nil, nil
	}
	// DynamoDB TTL deletion lags; treat expired items as misses.
	if expires, ok := out.Item["expires_at"]; ok && expires.N != nil {
		var epoch int64
		if _, err := fmt.Sscan(*expires.N, &epoch); err == nil && epoch > 0 && epoch <= d.now().Unix() {
			return nil, nil
		}
	}
	value, ok := out.Item["value"]
	if !ok || value.B == nil {
		return nil, nil
	}
	return value.B, nil
}

func (d *DynamoConnector) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	item := map[string]*dynamodb.AttributeValue{
		"cache_key": {S: aws.String(key)},
		"value":     {B: value},
	}
	if ttl > 0 {
		epoch := d.now().Add(ttl).Unix()
		item["expires_at"] = &dynamodb.AttributeValue{N: aws.String(fmt.Sprintf("%d", epoch))}
	}
	if _, err := d.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("dynamo put %s: %w", key, err)
	}
	return nil
}

func (d *DynamoConnector) Delete(ctx context.Context, key string) error {
	if _, err := d.db.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key: map[string]*dynamodb.AttributeValue{
			"cache_key": {S: aws.String(key)},
		},
	}); err != nil {
		return fmt.Errorf("dynamo delete %s: %w", key, err)
	}
	return nil
}

func (d *DynamoConnector) Close() error {
	return nil
}
