package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrItemNotFound    = errors.New("dynamodb: item not found")
	ErrConditionFailed = errors.New("dynamodb: conditional check failed")
)

func AttrString(value string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: value}
}

func AttrNumber(value int) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", value)}
}

func AttrBool(value bool) types.AttributeValue {
	return &types.AttributeValueMemberBOOL{Value: value}
}

func (c *DynamoDBClient) PutItem(
	ctx context.Context,
	tableName string,
	item interface{},
) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      av,
	}

	_, err = c.svc.PutItem(ctx, input)
	if err != nil {
		return fmt.Errorf("put item %s: %w", tableName, err)
	}
	return nil
}

func (c *DynamoDBClient) GetItem(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	out interface{},
) error {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(tableName),
		Key:       key,
	}

	res, err := c.svc.GetItem(ctx, input)
	if err != nil {
		return fmt.Errorf("get item %s: %w", tableName, err)
	}
	if len(res.Item) == 0 {
		return fmt.Errorf("get item %s: %w", tableName, ErrItemNotFound)
	}

	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}

// UpdateItem applies updateExpr and, when out is non-nil, decodes the item as
// it looks after the update.
func (c *DynamoDBClient) UpdateItem(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	updateExpr string,
	exprAttrValues map[string]types.AttributeValue,
	exprAttrNames map[string]string,
	out interface{},
) error {
	return c.ConditionalUpdateItem(ctx, tableName, key, updateExpr, "", exprAttrValues, exprAttrNames, out)
}

// ConditionalUpdateItem is UpdateItem guarded by condExpr. A failed condition
// is reported as ErrConditionFailed so callers never need the SDK error types.
func (c *DynamoDBClient) ConditionalUpdateItem(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	updateExpr string,
	condExpr string,
	exprAttrValues map[string]types.AttributeValue,
	exprAttrNames map[string]string,
	out interface{},
) error {
	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(tableName),
		Key:                       key,
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeValues: exprAttrValues,
		ReturnValues:              types.ReturnValueAllNew,
	}
	if len(exprAttrNames) > 0 {
		input.ExpressionAttributeNames = exprAttrNames
	}
	if condExpr != "" {
		input.ConditionExpression = aws.String(condExpr)
	}

	res, err := c.svc.UpdateItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("update item %s: %w", tableName, ErrConditionFailed)
		}
		return fmt.Errorf("update item %s: %w", tableName, err)
	}

	if out != nil {
		if err := attributevalue.UnmarshalMap(res.Attributes, out); err != nil {
			return fmt.Errorf("unmarshal updated item: %w", err)
		}
	}
	return nil
}

// QueryAll performs a complete query, handling pagination internally.
func (c *DynamoDBClient) QueryAll(
	ctx context.Context,
	tableName string,
	indexName *string,
	keyCondExpr string,
	filterExpr *string,
	exprAttrValues map[string]types.AttributeValue,
	exprAttrNames map[string]string,
) ([]map[string]types.AttributeValue, error) {
	var allItems []map[string]types.AttributeValue
	var lastEvaluatedKey map[string]types.AttributeValue

	for {
		input := &dynamodb.QueryInput{
			TableName:                 aws.String(tableName),
			KeyConditionExpression:    aws.String(keyCondExpr),
			ExpressionAttributeValues: exprAttrValues,
		}

		if indexName != nil {
			input.IndexName = indexName
		}
		if filterExpr != nil {
			input.FilterExpression = filterExpr
		}
		if len(exprAttrNames) > 0 {
			input.ExpressionAttributeNames = exprAttrNames
		}
		if lastEvaluatedKey != nil {
			input.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := c.svc.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query all %s[%s]: %w", tableName, aws.ToString(indexName), err)
		}

		allItems = append(allItems, result.Items...)

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}

	return allItems, nil
}

// ScanAll performs a complete scan of the table, handling pagination internally.
func (c *DynamoDBClient) ScanAll(
	ctx context.Context,
	tableName string,
	projectionExpr *string,
) ([]map[string]types.AttributeValue, error) {
	var allItems []map[string]types.AttributeValue
	var lastEvaluatedKey map[string]types.AttributeValue

	for {
		input := &dynamodb.ScanInput{
			TableName: aws.String(tableName),
		}
		if projectionExpr != nil {
			input.ProjectionExpression = projectionExpr
		}
		if lastEvaluatedKey != nil {
			input.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := c.svc.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan all %s: %w", tableName, err)
		}

		allItems = append(allItems, result.Items...)

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}

	return allItems, nil
}

func (c *DynamoDBClient) BatchGetByKeys(
	ctx context.Context,
	tableName string,
	keyValues []string,
	keyField string,
	batchSize int,
) ([]map[string]types.AttributeValue, error) {
	if len(keyValues) == 0 {
		return []map[string]types.AttributeValue{}, nil
	}

	if batchSize <= 0 || batchSize > 100 {
		batchSize = 100
	}

	var allItems []map[string]types.AttributeValue

	for i := 0; i < len(keyValues); i += batchSize {
		end := i + batchSize
		if end > len(keyValues) {
			end = len(keyValues)
		}

		items, err := c.batchGetChunk(ctx, tableName, keyValues[i:end], keyField)
		if err != nil {
			return nil, err
		}

		allItems = append(allItems, items...)
	}

	return allItems, nil
}

func (c *DynamoDBClient) batchGetChunk(
	ctx context.Context,
	tableName string,
	keyValues []string,
	keyField string,
) ([]map[string]types.AttributeValue, error) {
	keys := make([]map[string]types.AttributeValue, len(keyValues))
	for i, value := range keyValues {
		keys[i] = map[string]types.AttributeValue{
			keyField: AttrString(value),
		}
	}

	const maxRetries = 3
	pending := map[string]types.KeysAndAttributes{
		tableName: {Keys: keys},
	}

	var items []map[string]types.AttributeValue
	for attempt := 0; len(pending) > 0; attempt++ {
		if attempt == maxRetries {
			return nil, fmt.Errorf("batch get %s: %d keys unprocessed after %d attempts",
				tableName, len(pending[tableName].Keys), maxRetries)
		}
		if attempt > 0 {
			backoffDuration := time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDuration):
			}
		}

		res, err := c.svc.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
		if err != nil {
			return nil, fmt.Errorf("batch get %s: %w", tableName, err)
		}

		items = append(items, res.Responses[tableName]...)
		pending = res.UnprocessedKeys
	}

	return items, nil
}
