package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chat-routing-backend/internal/model"

	"github.com/jackc/pgx/v5"
)

func (s *Store) ListAutoRules(ctx context.Context, tenantID string, types []model.RuleType, enabledOnly bool) ([]model.AutoRule, error) {
	query := `
		SELECT rule_id, tenant_id, rule_type, is_enabled, trigger_minutes, message_content
		FROM auto_rules
		WHERE tenant_id = $1`
	args := []any{tenantID}
	if enabledOnly {
		query += " AND is_enabled"
	}
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		args = append(args, names)
		query += fmt.Sprintf(" AND rule_type = ANY($%d)", len(args))
	}
	query += " ORDER BY rule_id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list auto rules: %w", err)
	}
	defer rows.Close()

	var out []model.AutoRule
	for rows.Next() {
		var (
			rule     model.AutoRule
			ruleType string
		)
		if err := rows.Scan(&rule.RuleID, &rule.TenantID, &ruleType, &rule.IsEnabled, &rule.TriggerMinutes, &rule.MessageContent); err != nil {
			return nil, fmt.Errorf("postgres: scan auto rule: %w", err)
		}
		rule.PK = rule.RuleID
		rule.RuleType = model.RuleType(ruleType)
		out = append(out, rule)
	}
	return out, rows.Err()
}

const messageColumns = `message_id, room_id, tenant_id, sender_type, sender_id, content, metadata, created_at`

func scanMessage(row pgx.Row) (model.Message, error) {
	var (
		msg        model.Message
		senderType string
		senderID   *string
		metadata   []byte
	)
	if err := row.Scan(&msg.MessageID, &msg.RoomID, &msg.TenantID, &senderType, &senderID, &msg.Content, &metadata, &msg.CreatedAt); err != nil {
		return model.Message{}, err
	}
	msg.PK = model.MessagePK(msg.RoomID, msg.MessageID)
	msg.SenderType = model.SenderType(senderType)
	msg.SenderID = derefString(senderID)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
			return model.Message{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return msg, nil
}

func (s *Store) GetLastNonSystemMessage(ctx context.Context, roomID string) (model.Message, error) {
	msg, err := scanMessage(s.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE room_id = $1 AND sender_type <> $2
		ORDER BY created_at DESC
		LIMIT 1`,
		roomID, string(model.SenderSystem),
	))
	if err != nil {
		if isNoRows(err) {
			return model.Message{}, model.ErrNotFound
		}
		return model.Message{}, fmt.Errorf("postgres: last non-system message: %w", err)
	}
	return msg, nil
}

func (s *Store) ListSystemMessagesSince(ctx context.Context, roomID string, since time.Time) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE room_id = $1 AND sender_type = $2 AND created_at >= $3
		ORDER BY created_at ASC`,
		roomID, string(model.SenderSystem), since,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list system messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *Store) InsertMessage(ctx context.Context, message model.Message) error {
	metadata := []byte("{}")
	if len(message.Metadata) > 0 {
		raw, err := json.Marshal(message.Metadata)
		if err != nil {
			return fmt.Errorf("postgres: encode metadata: %w", err)
		}
		metadata = raw
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		message.MessageID, message.RoomID, message.TenantID, string(message.SenderType),
		nullableString(message.SenderID), message.Content, metadata, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert message: %w", err)
	}
	return nil
}
