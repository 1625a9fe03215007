package resultlog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Sink receives each entry as soon as it is recorded.
type Sink interface {
	Put(ctx context.Context, runID string, e Entry) error
}

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoSink stores entries in a DynamoDB table so several processes
// sharing one run ID never record the same target twice.
//
// Table schema:
//   - Partition key: run_id (string)
//   - Sort key: target (number)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name stampcut-results \
//	  --attribute-definitions AttributeName=run_id,AttributeType=S AttributeName=target,AttributeType=N \
//	  --key-schema AttributeName=run_id,KeyType=HASH AttributeName=target,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DynamoSink struct {
	client    DDBClient
	tableName string
}

// NewDynamoSink creates a sink writing to tableName.
func NewDynamoSink(client DDBClient, tableName string) *DynamoSink {
	return &DynamoSink{client: client, tableName: tableName}
}

// Put writes e with a conditional put. A second write of the same target
// under the same run returns ErrAlreadyWritten.
func (s *DynamoSink) Put(ctx context.Context, runID string, e Entry) error {
	item := map[string]types.AttributeValue{
		"run_id": &types.AttributeValueMemberS{Value: runID},
		"target": &types.AttributeValueMemberN{Value: strconv.Itoa(e.Target)},
		"images": &types.AttributeValueMemberN{Value: strconv.Itoa(e.Images)},
		"status": &types.AttributeValueMemberN{Value: strconv.Itoa(int(e.Status))},
	}
	if e.ID != "" {
		item["id"] = &types.AttributeValueMemberS{Value: e.ID}
	}
	if e.Reason != "" {
		item["reason"] = &types.AttributeValueMemberS{Value: e.Reason}
	}

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(target)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: run %s target %d", ErrAlreadyWritten, runID, e.Target)
		}
		return fmt.Errorf("resultlog: put item: %w", err)
	}
	return nil
}

// Load returns the entries stored for runID, in target order.
func (s *DynamoSink) Load(ctx context.Context, runID string) ([]Entry, error) {
	var (
		out   []Entry
		start map[string]types.AttributeValue
	)
	for {
		resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("run_id = :run"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":run": &types.AttributeValueMemberS{Value: runID},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("resultlog: query: %w", err)
		}
		for _, item := range resp.Items {
			e, err := entryFromItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		if len(resp.LastEvaluatedKey) == 0 {
			return out, nil
		}
		start = resp.LastEvaluatedKey
	}
}

func entryFromItem(item map[string]types.AttributeValue) (Entry, error) {
	var e Entry
	var err error
	if e.Target, err = numberAttr(item, "target"); err != nil {
		return e, err
	}
	if e.Images, err = numberAttr(item, "images"); err != nil {
		return e, err
	}
	st, err := numberAttr(item, "status")
	if err != nil {
		return e, err
	}
	e.Status = Status(st)
	if v, ok := item["id"].(*types.AttributeValueMemberS); ok {
		e.ID = v.Value
	}
	if v, ok := item["reason"].(*types.AttributeValueMemberS); ok {
		e.Reason = v.Value
	}
	return e, nil
}

func numberAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("resultlog: invalid %s attribute", key)
	}
	n, err := strconv.Atoi(v.Value)
	if err != nil {
		return 0, fmt.Errorf("resultlog: parse %s: %w", key, err)
	}
	return n, nil
}
