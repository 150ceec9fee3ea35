package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chat-routing-backend/internal/model"

	"github.com/jackc/pgx/v5"
)

const roomColumns = `room_id, tenant_id, visitor_id, status, attendant_id, category_id,
	resolution_status, created_at, updated_at, assigned_at, closed_at`

func scanRoom(row pgx.Row) (model.Room, error) {
	var (
		room                                       model.Room
		visitorID, attendantID, categoryID, resSts *string
		status                                     string
	)
	err := row.Scan(
		&room.RoomID, &room.TenantID, &visitorID, &status, &attendantID, &categoryID,
		&resSts, &room.CreatedAt, &room.UpdatedAt, &room.AssignedAt, &room.ClosedAt,
	)
	if err != nil {
		return model.Room{}, err
	}
	room.VisitorID = derefString(visitorID)
	room.Status = model.RoomStatus(status)
	room.AttendantID = derefString(attendantID)
	room.CategoryID = derefString(categoryID)
	room.ResolutionStatus = model.ResolutionStatus(derefString(resSts))
	return room, nil
}

func collectRooms(rows pgx.Rows) ([]model.Room, error) {
	defer rows.Close()
	var rooms []model.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (s *Store) GetRoom(ctx context.Context, roomID string) (model.Room, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE room_id = $1`, roomID)
	room, err := scanRoom(row)
	if err != nil {
		if isNoRows(err) {
			return model.Room{}, model.ErrNotFound
		}
		return model.Room{}, fmt.Errorf("postgres: get room: %w", err)
	}
	return room, nil
}

// buildRoomUpdate renders the UPDATE for update. $1 is always the room id.
// With expected statuses the statement only matches rooms in one of them.
func buildRoomUpdate(roomID string, update model.RoomUpdate, expected []model.RoomStatus) (string, []any) {
	args := []any{roomID}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var sets []string
	if update.Status != nil {
		sets = append(sets, "status = "+next(string(*update.Status)))
	}
	if update.ClearAttendant {
		sets = append(sets, "attendant_id = NULL")
	}
	if update.AttendantID != nil {
		sets = append(sets, "attendant_id = "+next(*update.AttendantID))
	}
	if update.ResolutionStatus != nil {
		sets = append(sets, "resolution_status = "+next(string(*update.ResolutionStatus)))
	}
	if update.AssignedAt != nil {
		sets = append(sets, "assigned_at = "+next(*update.AssignedAt))
	}
	if update.ClosedAt != nil {
		sets = append(sets, "closed_at = "+next(*update.ClosedAt))
	}
	if update.UpdatedAt.IsZero() {
		sets = append(sets, "updated_at = NOW()")
	} else {
		sets = append(sets, "updated_at = "+next(update.UpdatedAt))
	}

	query := "UPDATE rooms SET " + strings.Join(sets, ", ") + " WHERE room_id = $1"
	if len(expected) > 0 {
		statuses := make([]string, len(expected))
		for i, st := range expected {
			statuses[i] = string(st)
		}
		query += " AND status = ANY(" + next(statuses) + ")"
	}
	if update.ExpectedAttendantID != nil {
		if *update.ExpectedAttendantID == "" {
			query += " AND attendant_id IS NULL"
		} else {
			query += " AND attendant_id = " + next(*update.ExpectedAttendantID)
		}
	}
	query += " RETURNING " + roomColumns
	return query, args
}

func (s *Store) UpdateRoom(ctx context.Context, roomID string, update model.RoomUpdate, expected ...model.RoomStatus) (model.Room, error) {
	if err := update.Validate(); err != nil {
		return model.Room{}, err
	}

	query, args := buildRoomUpdate(roomID, update, expected)
	room, err := scanRoom(s.pool.QueryRow(ctx, query, args...))
	if err == nil {
		return room, nil
	}
	if !isNoRows(err) {
		return model.Room{}, fmt.Errorf("postgres: update room: %w", err)
	}

	// No row matched: either the room is gone or a guard no longer holds.
	if _, getErr := s.GetRoom(ctx, roomID); getErr != nil {
		return model.Room{}, getErr
	}
	return model.Room{}, model.ErrConditionFailed
}

func (s *Store) ListOpenRoomsByTenant(ctx context.Context, tenantID string) ([]model.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE tenant_id = $1 AND status = ANY($2)
		ORDER BY created_at ASC`,
		tenantID, openStatuses(),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open rooms: %w", err)
	}
	rooms, err := collectRooms(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open rooms: %w", err)
	}
	return rooms, nil
}

func (s *Store) CountOpenRoomsByAttendant(ctx context.Context, attendantID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM rooms WHERE attendant_id = $1 AND status = ANY($2)`,
		attendantID, openStatuses(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count open rooms: %w", err)
	}
	return count, nil
}

// CreateRoom inserts a room as the intake flow would.
func (s *Store) CreateRoom(ctx context.Context, room model.Room) error {
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = room.CreatedAt
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		room.RoomID, room.TenantID, nullableString(room.VisitorID), string(room.Status),
		nullableString(room.AttendantID), nullableString(room.CategoryID),
		nullableString(string(room.ResolutionStatus)), room.CreatedAt, room.UpdatedAt,
		room.AssignedAt, room.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create room: %w", err)
	}
	return nil
}

func openStatuses() []string {
	out := make([]string, len(model.OpenRoomStatuses))
	for i, st := range model.OpenRoomStatuses {
		out[i] = string(st)
	}
	return out
}
