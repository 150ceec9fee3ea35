package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"chat-routing-backend/internal/database"
	"chat-routing-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func (s *Store) GetRoom(ctx context.Context, roomID string) (model.Room, error) {
	var room model.Room
	if err := s.client.GetItem(ctx, model.RoomsTable, key("roomId", roomID), &room); err != nil {
		return model.Room{}, translate(err)
	}
	return room, nil
}

// CreateRoom stores a room as the intake flow would.
func (s *Store) CreateRoom(ctx context.Context, room model.Room) error {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = room.CreatedAt
	}
	return s.client.PutItem(ctx, model.RoomsTable, room)
}

type roomUpdateExpr struct {
	update    string
	condition string
	values    map[string]types.AttributeValue
	names     map[string]string
}

// buildRoomUpdate renders update as a DynamoDB update expression. The
// condition always requires the room to exist and, with expected statuses,
// to currently be in one of them.
func buildRoomUpdate(update model.RoomUpdate, expected []model.RoomStatus) (roomUpdateExpr, error) {
	expr := roomUpdateExpr{
		values: map[string]types.AttributeValue{},
		names:  map[string]string{"#roomId": "roomId"},
	}

	var sets, removes []string
	set := func(attr string, value any) error {
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", attr, err)
		}
		expr.names["#"+attr] = attr
		expr.values[":"+attr] = av
		sets = append(sets, fmt.Sprintf("#%s = :%s", attr, attr))
		return nil
	}

	if update.Status != nil {
		if err := set("status", string(*update.Status)); err != nil {
			return roomUpdateExpr{}, err
		}
	}
	if update.ClearAttendant {
		expr.names["#attendantId"] = "attendantId"
		removes = append(removes, "#attendantId")
	}
	if update.AttendantID != nil {
		if err := set("attendantId", *update.AttendantID); err != nil {
			return roomUpdateExpr{}, err
		}
	}
	if update.ResolutionStatus != nil {
		if err := set("resolutionStatus", string(*update.ResolutionStatus)); err != nil {
			return roomUpdateExpr{}, err
		}
	}
	if update.AssignedAt != nil {
		if err := set("assignedAt", *update.AssignedAt); err != nil {
			return roomUpdateExpr{}, err
		}
	}
	if update.ClosedAt != nil {
		if err := set("closedAt", *update.ClosedAt); err != nil {
			return roomUpdateExpr{}, err
		}
	}
	if !update.UpdatedAt.IsZero() {
		if err := set("updatedAt", update.UpdatedAt); err != nil {
			return roomUpdateExpr{}, err
		}
	}

	var parts []string
	if len(sets) > 0 {
		parts = append(parts, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		parts = append(parts, "REMOVE "+strings.Join(removes, ", "))
	}
	expr.update = strings.Join(parts, " ")

	expr.condition = "attribute_exists(#roomId)"
	if len(expected) > 0 {
		expr.names["#status"] = "status"
		placeholders := make([]string, len(expected))
		for i, st := range expected {
			ph := fmt.Sprintf(":expected%d", i)
			placeholders[i] = ph
			expr.values[ph] = database.AttrString(string(st))
		}
		expr.condition += " AND #status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	if update.ExpectedAttendantID != nil {
		expr.names["#attendantId"] = "attendantId"
		if *update.ExpectedAttendantID == "" {
			expr.condition += " AND attribute_not_exists(#attendantId)"
		} else {
			expr.values[":prevAttendantId"] = database.AttrString(*update.ExpectedAttendantID)
			expr.condition += " AND #attendantId = :prevAttendantId"
		}
	}
	return expr, nil
}

func (s *Store) UpdateRoom(ctx context.Context, roomID string, update model.RoomUpdate, expected ...model.RoomStatus) (model.Room, error) {
	if err := update.Validate(); err != nil {
		return model.Room{}, err
	}
	if update.UpdatedAt.IsZero() {
		update.UpdatedAt = time.Now().UTC()
	}

	expr, err := buildRoomUpdate(update, expected)
	if err != nil {
		return model.Room{}, err
	}

	var room model.Room
	err = s.client.ConditionalUpdateItem(ctx, model.RoomsTable, key("roomId", roomID),
		expr.update, expr.condition, expr.values, expr.names, &room)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, database.ErrConditionFailed) {
		return model.Room{}, translate(err)
	}

	// The condition covers both a missing room and a status that moved on.
	if _, getErr := s.GetRoom(ctx, roomID); getErr != nil {
		return model.Room{}, getErr
	}
	return model.Room{}, translate(err)
}

func openStatusFilter() (string, map[string]types.AttributeValue, map[string]string) {
	values := map[string]types.AttributeValue{}
	placeholders := make([]string, len(model.OpenRoomStatuses))
	for i, st := range model.OpenRoomStatuses {
		ph := fmt.Sprintf(":open%d", i)
		placeholders[i] = ph
		values[ph] = database.AttrString(string(st))
	}
	return "#status IN (" + strings.Join(placeholders, ", ") + ")", values, map[string]string{"#status": "status"}
}

func (s *Store) ListOpenRoomsByTenant(ctx context.Context, tenantID string) ([]model.Room, error) {
	filter, values, names := openStatusFilter()
	items, err := s.queryByIndex(ctx, model.RoomsTable, IndexByTenant, "tenantId", tenantID, &filter, values, names)
	if err != nil {
		return nil, err
	}
	rooms, err := unmarshalAll[model.Room](items)
	if err != nil {
		return nil, err
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func (s *Store) CountOpenRoomsByAttendant(ctx context.Context, attendantID string) (int, error) {
	filter, values, names := openStatusFilter()
	items, err := s.queryByIndex(ctx, model.RoomsTable, IndexByAttendant, "attendantId", attendantID, &filter, values, names)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}
