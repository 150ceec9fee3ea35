package dynamo

import (
	"context"
	"errors"

	"chat-routing-backend/internal/database"
	"chat-routing-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func (s *Store) GetAttendant(ctx context.Context, attendantID string) (model.Attendant, error) {
	var a model.Attendant
	if err := s.client.GetItem(ctx, model.AttendantsTable, key("attendantId", attendantID), &a); err != nil {
		return model.Attendant{}, translate(err)
	}
	return a, nil
}

func (s *Store) IncrementAttendantCapacity(ctx context.Context, attendantID string) (int, error) {
	var a model.Attendant
	err := s.client.ConditionalUpdateItem(ctx, model.AttendantsTable, key("attendantId", attendantID),
		"ADD #active :one",
		"attribute_exists(#id)",
		map[string]types.AttributeValue{":one": database.AttrNumber(1)},
		map[string]string{"#active": "activeConversations", "#id": "attendantId"},
		&a,
	)
	if err != nil {
		if errors.Is(err, database.ErrConditionFailed) {
			return 0, model.ErrNotFound
		}
		return 0, translate(err)
	}
	return a.ActiveConversations, nil
}

// DecrementAttendantCapacity never takes the counter below zero. A refused
// decrement on an existing attendant reports 0.
func (s *Store) DecrementAttendantCapacity(ctx context.Context, attendantID string) (int, error) {
	var a model.Attendant
	err := s.client.ConditionalUpdateItem(ctx, model.AttendantsTable, key("attendantId", attendantID),
		"SET #active = #active - :one",
		"attribute_exists(#id) AND #active > :zero",
		map[string]types.AttributeValue{
			":one":  database.AttrNumber(1),
			":zero": database.AttrNumber(0),
		},
		map[string]string{"#active": "activeConversations", "#id": "attendantId"},
		&a,
	)
	if err == nil {
		return a.ActiveConversations, nil
	}
	if !errors.Is(err, database.ErrConditionFailed) {
		return 0, translate(err)
	}
	if _, getErr := s.GetAttendant(ctx, attendantID); getErr != nil {
		return 0, getErr
	}
	return 0, nil
}

func (s *Store) SetAttendantCapacity(ctx context.Context, attendantID string, count int) error {
	if count < 0 {
		count = 0
	}
	err := s.client.ConditionalUpdateItem(ctx, model.AttendantsTable, key("attendantId", attendantID),
		"SET #active = :count",
		"attribute_exists(#id)",
		map[string]types.AttributeValue{":count": database.AttrNumber(count)},
		map[string]string{"#active": "activeConversations", "#id": "attendantId"},
		nil,
	)
	if errors.Is(err, database.ErrConditionFailed) {
		return model.ErrNotFound
	}
	return translate(err)
}

func (s *Store) ListTeamAttendants(ctx context.Context, teamID string, onlineOnly bool) ([]model.Attendant, error) {
	items, err := s.queryByIndex(ctx, model.TeamMembersTable, IndexByTeam, "teamId", teamID, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	members, err := unmarshalAll[model.TeamMember](items)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.AttendantID
	}
	rows, err := s.client.BatchGetByKeys(ctx, model.AttendantsTable, ids, "attendantId", 100)
	if err != nil {
		return nil, err
	}
	attendants, err := unmarshalAll[model.Attendant](rows)
	if err != nil {
		return nil, err
	}

	out := attendants[:0]
	for _, a := range attendants {
		if onlineOnly && a.OnlineStatus != model.OnlineStatusOnline {
			continue
		}
		out = append(out, a)
	}
	sortAttendants(out)
	return out, nil
}
