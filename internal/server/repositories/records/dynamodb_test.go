package records

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/dmitrijs2005/famledger/internal/server/dynamo"
)

func dynamoChange(version int64) *models.RemoteChange {
	ts := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	return &models.RemoteChange{
		MutationID: "m1",
		Record: models.Record{
			ID: "e1", EntityType: "expense", HouseholdID: "h1", Version: version,
			CreatedAt: ts, CreatedBy: "alice", UpdatedAt: ts, UpdatedBy: "alice",
			Payload: json.RawMessage(`{"amount": 12.50}`),
		},
	}
}

func counterOutput(seq int64) *dynamodb.UpdateItemOutput {
	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
		counterAttr: &types.AttributeValueMemberN{Value: strconv.FormatInt(seq, 10)},
	}}
}

func TestDynamoStore_Current(t *testing.T) {
	stored := dynamoChange(3)
	stored.Seq = 11
	item, err := attributevalue.MarshalMap(itemFromChange(stored))
	require.NoError(t, err)

	var gotKey string
	mock := &dynamo.MockClient{
		GetItemFn: func(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			gotKey = in.Key["PK"].(*types.AttributeValueMemberS).Value
			assert.True(t, aws.ToBool(in.ConsistentRead))
			if gotKey == "REC#expense#e1" {
				return &dynamodb.GetItemOutput{Item: item}, nil
			}
			return &dynamodb.GetItemOutput{}, nil
		},
	}
	s := NewDynamoStore(mock, "t")

	got, err := s.Current(context.Background(), "expense", "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, "m1", got.MutationID)
	assert.Equal(t, `{"amount": 12.50}`, string(got.Payload))
	assert.True(t, stored.Record.CreatedAt.Equal(got.CreatedAt))

	_, err = s.Current(context.Background(), "expense", "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDynamoStore_ApplyCreate(t *testing.T) {
	var put *dynamodb.PutItemInput
	mock := &dynamo.MockClient{
		UpdateItemFn: func(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			assert.Equal(t, "HH#h1", in.Key["PK"].(*types.AttributeValueMemberS).Value)
			assert.Equal(t, types.ReturnValueUpdatedNew, in.ReturnValues)
			return counterOutput(7), nil
		},
		PutItemFn: func(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			put = in
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	s := NewDynamoStore(mock, "records")

	c := dynamoChange(1)
	require.NoError(t, s.Apply(context.Background(), c, 0))
	assert.Equal(t, int64(7), c.Seq)

	require.NotNil(t, put)
	assert.Equal(t, "records", aws.ToString(put.TableName))
	assert.Contains(t, aws.ToString(put.ConditionExpression), "attribute_not_exists")

	var it recordItem
	require.NoError(t, attributevalue.UnmarshalMap(put.Item, &it))
	assert.Equal(t, "REC#expense#e1", it.PK)
	assert.Equal(t, "HH#h1", it.GSI1PK)
	assert.Equal(t, int64(7), it.GSI1SK)
}

func TestDynamoStore_ApplyUpdateIsConditional(t *testing.T) {
	var put *dynamodb.PutItemInput
	mock := &dynamo.MockClient{
		UpdateItemFn: func(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			return counterOutput(8), nil
		},
		PutItemFn: func(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			put = in
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	s := NewDynamoStore(mock, "records")

	require.NoError(t, s.Apply(context.Background(), dynamoChange(3), 2))
	assert.NotContains(t, aws.ToString(put.ConditionExpression), "attribute_not_exists")

	var expected bool
	for _, v := range put.ExpressionAttributeValues {
		if n, ok := v.(*types.AttributeValueMemberN); ok && n.Value == "2" {
			expected = true
		}
	}
	assert.True(t, expected, "expected version must be part of the condition")
}

func TestDynamoStore_ApplyRejected(t *testing.T) {
	current := func(household string) map[string]types.AttributeValue {
		c := dynamoChange(5)
		c.Record.HouseholdID = household
		item, err := attributevalue.MarshalMap(itemFromChange(c))
		require.NoError(t, err)
		return item
	}

	tests := []struct {
		name    string
		putErr  error
		wantErr error
	}{
		{"stale", &types.ConditionalCheckFailedException{Item: current("h1")}, common.ErrVersionConflict},
		{"exists on create", &types.ConditionalCheckFailedException{}, common.ErrVersionConflict},
		{"other household", &types.ConditionalCheckFailedException{Item: current("h2")}, common.ErrUnauthorized},
		{"throttled", errors.New("throttled"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &dynamo.MockClient{
				UpdateItemFn: func(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
					return counterOutput(9), nil
				},
				PutItemFn: func(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
					return nil, tt.putErr
				},
			}
			err := NewDynamoStore(mock, "t").Apply(context.Background(), dynamoChange(4), 3)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.ErrorContains(t, err, "throttled")
			}
		})
	}
}

func TestDynamoStore_ApplyCounterError(t *testing.T) {
	mock := &dynamo.MockClient{
		UpdateItemFn: func(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			return nil, errors.New("boom")
		},
		PutItemFn: func(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			t.Fatal("put must not run")
			return nil, nil
		},
	}
	err := NewDynamoStore(mock, "t").Apply(context.Background(), dynamoChange(1), 0)
	assert.ErrorContains(t, err, "boom")
}

func TestDynamoStore_Changes(t *testing.T) {
	page := func(seqs ...int64) []map[string]types.AttributeValue {
		var items []map[string]types.AttributeValue
		for _, s := range seqs {
			c := dynamoChange(1)
			c.Seq = s
			item, err := attributevalue.MarshalMap(itemFromChange(c))
			require.NoError(t, err)
			items = append(items, item)
		}
		return items
	}

	calls := 0
	mock := &dynamo.MockClient{
		GetItemFn: func(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			assert.Equal(t, "SEQ", in.Key["SK"].(*types.AttributeValueMemberS).Value)
			return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
				counterAttr: &types.AttributeValueMemberN{Value: "12"},
			}}, nil
		},
		QueryFn: func(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			calls++
			assert.Equal(t, changesIndex, aws.ToString(in.IndexName))
			if calls == 1 {
				assert.Equal(t, int32(3), aws.ToInt32(in.Limit))
				return &dynamodb.QueryOutput{
					Items:            page(4, 6),
					LastEvaluatedKey: map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "x"}},
				}, nil
			}
			assert.Equal(t, int32(1), aws.ToInt32(in.Limit))
			assert.NotEmpty(t, in.ExclusiveStartKey)
			return &dynamodb.QueryOutput{Items: page(9)}, nil
		},
	}

	changes, latest, err := NewDynamoStore(mock, "t").Changes(context.Background(), "h1", 3, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(12), latest)
	require.Len(t, changes, 3)
	assert.Equal(t, []int64{4, 6, 9}, []int64{changes[0].Seq, changes[1].Seq, changes[2].Seq})
	assert.Equal(t, 2, calls)
}

func TestDynamoStore_ChangesEmptyHousehold(t *testing.T) {
	changes, latest, err := NewDynamoStore(&dynamo.MockClient{}, "t").Changes(context.Background(), "h1", 0, 10)
	require.NoError(t, err)
	assert.Zero(t, latest)
	assert.Empty(t, changes)
}
