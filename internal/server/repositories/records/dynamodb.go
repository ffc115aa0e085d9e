package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/dmitrijs2005/famledger/internal/server/dynamo"
)

const (
	changesIndex = "GSI1"
	stateSK      = "STATE"
	counterSK    = "SEQ"
	counterAttr  = "change_seq"
)

func recordPK(entityType, id string) string { return fmt.Sprintf("REC#%s#%s", entityType, id) }
func householdPK(householdID string) string { return "HH#" + householdID }

// recordItem is the single-table layout: one STATE item per record,
// indexed on GSI1 by household and sequence.
type recordItem struct {
	PK          string     `dynamodbav:"PK"`
	SK          string     `dynamodbav:"SK"`
	GSI1PK      string     `dynamodbav:"GSI1PK"`
	GSI1SK      int64      `dynamodbav:"GSI1SK"`
	EntityType  string     `dynamodbav:"entity_type"`
	ID          string     `dynamodbav:"id"`
	HouseholdID string     `dynamodbav:"household_id"`
	Version     int64      `dynamodbav:"version"`
	CreatedAt   time.Time  `dynamodbav:"created_at"`
	CreatedBy   string     `dynamodbav:"created_by"`
	UpdatedAt   time.Time  `dynamodbav:"updated_at"`
	UpdatedBy   string     `dynamodbav:"updated_by"`
	DeletedAt   *time.Time `dynamodbav:"deleted_at,omitempty"`
	Payload     string     `dynamodbav:"payload"`
	MutationID  string     `dynamodbav:"mutation_id"`
}

func itemFromChange(c *models.RemoteChange) recordItem {
	r := c.Record
	return recordItem{
		PK:          recordPK(r.EntityType, r.ID),
		SK:          stateSK,
		GSI1PK:      householdPK(r.HouseholdID),
		GSI1SK:      c.Seq,
		EntityType:  r.EntityType,
		ID:          r.ID,
		HouseholdID: r.HouseholdID,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		CreatedBy:   r.CreatedBy,
		UpdatedAt:   r.UpdatedAt,
		UpdatedBy:   r.UpdatedBy,
		DeletedAt:   r.DeletedAt,
		Payload:     string(r.Payload),
		MutationID:  c.MutationID,
	}
}

func (it *recordItem) change() models.RemoteChange {
	return models.RemoteChange{
		Seq:        it.GSI1SK,
		MutationID: it.MutationID,
		Record: models.Record{
			ID:          it.ID,
			EntityType:  it.EntityType,
			HouseholdID: it.HouseholdID,
			Version:     it.Version,
			CreatedAt:   it.CreatedAt,
			CreatedBy:   it.CreatedBy,
			UpdatedAt:   it.UpdatedAt,
			UpdatedBy:   it.UpdatedBy,
			DeletedAt:   it.DeletedAt,
			Payload:     json.RawMessage(it.Payload),
		},
	}
}

// DynamoStore keeps records in a single DynamoDB table. The household
// sequence is an atomic counter item; the record write is conditional on
// the expected version.
type DynamoStore struct {
	client dynamo.Client
	table  string
}

func NewDynamoStore(client dynamo.Client, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) Current(ctx context.Context, entityType, id string) (*models.RemoteRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: recordPK(entityType, id)},
			"SK": &types.AttributeValueMemberS{Value: stateSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb error: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, common.ErrNotFound
	}

	var it recordItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("%w: record %s: %v", common.ErrCorruption, id, err)
	}
	c := it.change()
	return &models.RemoteRecord{Record: c.Record, MutationID: c.MutationID}, nil
}

func (s *DynamoStore) nextSeq(ctx context.Context, householdID string) (int64, error) {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name(counterAttr), expression.Value(1))).
		Build()
	if err != nil {
		return 0, fmt.Errorf("build expression: %w", err)
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: householdPK(householdID)},
			"SK": &types.AttributeValueMemberS{Value: counterSK},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("dynamodb error: %w", err)
	}

	var seq int64
	if err := attributevalue.Unmarshal(out.Attributes[counterAttr], &seq); err != nil {
		return 0, fmt.Errorf("%w: sequence counter: %v", common.ErrCorruption, err)
	}
	return seq, nil
}

// Apply takes a sequence number first, so a rejected write leaves a gap
// in the household sequence. Pull only relies on ordering.
func (s *DynamoStore) Apply(ctx context.Context, change *models.RemoteChange, expected int64) error {
	rec := change.Record

	seq, err := s.nextSeq(ctx, rec.HouseholdID)
	if err != nil {
		return err
	}
	change.Seq = seq

	item, err := attributevalue.MarshalMap(itemFromChange(change))
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	cond := expression.AttributeNotExists(expression.Name("PK"))
	if expected > 0 {
		cond = expression.Name("version").Equal(expression.Value(expected)).
			And(expression.Name("household_id").Equal(expression.Value(rec.HouseholdID)))
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build expression: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                           aws.String(s.table),
		Item:                                item,
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return nil
	}

	var condErr *types.ConditionalCheckFailedException
	if !errors.As(err, &condErr) {
		return fmt.Errorf("dynamodb error: %w", err)
	}

	var current recordItem
	if len(condErr.Item) > 0 {
		if uerr := attributevalue.UnmarshalMap(condErr.Item, &current); uerr == nil &&
			current.HouseholdID != rec.HouseholdID {
			return fmt.Errorf("%w: record belongs to another household", common.ErrUnauthorized)
		}
	}
	return fmt.Errorf("%w: %s/%s is at version %d, expected %d",
		common.ErrVersionConflict, rec.EntityType, rec.ID, current.Version, expected)
}

func (s *DynamoStore) latest(ctx context.Context, householdID string) (int64, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: householdPK(householdID)},
			"SK": &types.AttributeValueMemberS{Value: counterSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("dynamodb error: %w", err)
	}
	av, ok := out.Item[counterAttr]
	if !ok {
		return 0, nil
	}

	var seq int64
	if err := attributevalue.Unmarshal(av, &seq); err != nil {
		return 0, fmt.Errorf("%w: sequence counter: %v", common.ErrCorruption, err)
	}
	return seq, nil
}

func (s *DynamoStore) Changes(ctx context.Context, householdID string, since int64, limit int) ([]models.RemoteChange, int64, error) {
	latest, err := s.latest(ctx, householdID)
	if err != nil {
		return nil, 0, err
	}

	keyCond := expression.Key("GSI1PK").Equal(expression.Value(householdPK(householdID))).
		And(expression.Key("GSI1SK").GreaterThan(expression.Value(since)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, 0, fmt.Errorf("build expression: %w", err)
	}

	var out []models.RemoteChange
	var startKey map[string]types.AttributeValue
	for len(out) < limit {
		res, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.table),
			IndexName:                 aws.String(changesIndex),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          aws.Bool(true),
			Limit:                     aws.Int32(int32(limit - len(out))),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, 0, fmt.Errorf("dynamodb error: %w", err)
		}

		var items []recordItem
		if err := attributevalue.UnmarshalListOfMaps(res.Items, &items); err != nil {
			return nil, 0, fmt.Errorf("%w: change feed: %v", common.ErrCorruption, err)
		}
		for i := range items {
			out = append(out, items[i].change())
		}

		if len(res.LastEvaluatedKey) == 0 {
			break
		}
		startKey = res.LastEvaluatedKey
	}
	return out, latest, nil
}
