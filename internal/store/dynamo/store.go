// Package dynamo is the DynamoDB record store. Tables are keyed by entity id;
// tenant, room, team and category lookups go through global secondary
// indexes.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"chat-routing-backend/internal/database"
	"chat-routing-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	IndexByTenant    = "byTenant"
	IndexByAttendant = "byAttendant"
	IndexByRoom      = "byRoom"
	IndexByTeam      = "byTeam"
	IndexByCategory  = "byCategory"
)

type Store struct {
	client *database.DynamoDBClient
}

func New(db *database.Database) *Store {
	return &Store{client: db.Client}
}

func NewWithClient(client *database.DynamoDBClient) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error { return nil }

// translate maps database sentinels onto the record store ones.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrItemNotFound):
		return fmt.Errorf("%w: %v", model.ErrNotFound, err)
	case errors.Is(err, database.ErrConditionFailed):
		return fmt.Errorf("%w: %v", model.ErrConditionFailed, err)
	default:
		return err
	}
}

func key(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{name: database.AttrString(value)}
}

func unmarshalAll[T any](items []map[string]types.AttributeValue) ([]T, error) {
	out := make([]T, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	return out, nil
}

// queryByIndex runs an equality query on a single-attribute GSI.
func (s *Store) queryByIndex(ctx context.Context, table, index, attr, value string, filter *string, values map[string]types.AttributeValue, names map[string]string) ([]map[string]types.AttributeValue, error) {
	exprValues := map[string]types.AttributeValue{":key": database.AttrString(value)}
	for k, v := range values {
		exprValues[k] = v
	}
	exprNames := map[string]string{"#key": attr}
	for k, v := range names {
		exprNames[k] = v
	}
	return s.client.QueryAll(ctx, table, aws.String(index), "#key = :key", filter, exprValues, exprNames)
}

func sortRoutingRows(rows []model.CategoryRouting) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Position != rows[j].Position {
			return rows[i].Position < rows[j].Position
		}
		return rows[i].TeamID < rows[j].TeamID
	})
}

func sortAttendants(attendants []model.Attendant) {
	sort.Slice(attendants, func(i, j int) bool {
		return attendants[i].AttendantID < attendants[j].AttendantID
	})
}
