package resultlog

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDDBClient is an in-memory DynamoDB mock for testing.
type mockDDBClient struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{items: make(map[string]map[string]types.AttributeValue)}
}

func (m *mockDDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run := params.Item["run_id"].(*types.AttributeValueMemberS).Value
	target := params.Item["target"].(*types.AttributeValueMemberN).Value
	key := run + ":" + target

	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(target)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}
	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

// Query returns one item per page to exercise pagination.
func (m *mockDDBClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run := params.ExpressionAttributeValues[":run"].(*types.AttributeValueMemberS).Value
	var targets []int
	for _, item := range m.items {
		if item["run_id"].(*types.AttributeValueMemberS).Value != run {
			continue
		}
		n, _ := strconv.Atoi(item["target"].(*types.AttributeValueMemberN).Value)
		targets = append(targets, n)
	}
	sort.Ints(targets)

	after := -1
	if params.ExclusiveStartKey != nil {
		after, _ = strconv.Atoi(params.ExclusiveStartKey["target"].(*types.AttributeValueMemberN).Value)
	}
	for _, n := range targets {
		if n <= after {
			continue
		}
		item := m.items[run+":"+strconv.Itoa(n)]
		return &dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{item},
			LastEvaluatedKey: map[string]types.AttributeValue{
				"run_id": item["run_id"],
				"target": item["target"],
			},
		}, nil
	}
	return &dynamodb.QueryOutput{}, nil
}

func TestDynamoSinkPutOnce(t *testing.T) {
	ctx := context.Background()
	sink := NewDynamoSink(newMockDDBClient(), "results")

	require.NoError(t, sink.Put(ctx, "run-1", Entry{Target: 4, ID: "obj4", Images: 2, Status: OK}))
	assert.ErrorIs(t, sink.Put(ctx, "run-1", Entry{Target: 4}), ErrAlreadyWritten)
	require.NoError(t, sink.Put(ctx, "run-2", Entry{Target: 4}))
}

func TestDynamoSinkLoad(t *testing.T) {
	ctx := context.Background()
	sink := NewDynamoSink(newMockDDBClient(), "results")

	require.NoError(t, sink.Put(ctx, "run", Entry{Target: 7, Images: 1, Status: CenterBlank}))
	require.NoError(t, sink.Put(ctx, "run", Entry{Target: 2, Status: Failed, Reason: "boom"}))
	require.NoError(t, sink.Put(ctx, "other", Entry{Target: 1}))

	entries, err := sink.Load(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Target: 2, Status: Failed, Reason: "boom"},
		{Target: 7, Images: 1, Status: CenterBlank},
	}, entries)
}
