package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"chat-routing-backend/internal/database"
	"chat-routing-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func (s *Store) ListAutoRules(ctx context.Context, tenantID string, ruleTypes []model.RuleType, enabledOnly bool) ([]model.AutoRule, error) {
	var (
		clauses []string
		values  = map[string]types.AttributeValue{}
		names   = map[string]string{}
	)
	if enabledOnly {
		clauses = append(clauses, "#isEnabled = :enabled")
		values[":enabled"] = database.AttrBool(true)
		names["#isEnabled"] = "isEnabled"
	}
	if len(ruleTypes) > 0 {
		placeholders := make([]string, len(ruleTypes))
		for i, rt := range ruleTypes {
			ph := fmt.Sprintf(":type%d", i)
			placeholders[i] = ph
			values[ph] = database.AttrString(string(rt))
		}
		clauses = append(clauses, "#ruleType IN ("+strings.Join(placeholders, ", ")+")")
		names["#ruleType"] = "ruleType"
	}

	var filter *string
	if len(clauses) > 0 {
		f := strings.Join(clauses, " AND ")
		filter = &f
	}

	items, err := s.queryByIndex(ctx, model.AutoRulesTable, IndexByTenant, "tenantId", tenantID, filter, values, names)
	if err != nil {
		return nil, err
	}
	rules, err := unmarshalAll[model.AutoRule](items)
	if err != nil {
		return nil, err
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].RuleID < rules[j].RuleID
	})
	return rules, nil
}

func (s *Store) PutAutoRule(ctx context.Context, rule model.AutoRule) error {
	if rule.PK == "" {
		rule.PK = rule.RuleID
	}
	return s.client.PutItem(ctx, model.AutoRulesTable, rule)
}

func (s *Store) InsertMessage(ctx context.Context, message model.Message) error {
	if message.PK == "" {
		message.PK = model.MessagePK(message.RoomID, message.MessageID)
	}
	return s.client.PutItem(ctx, model.MessagesTable, message)
}

// roomMessages loads the whole history of a room ordered by creation time.
// createdAt is stored as RFC 3339 with variable precision, so ordering and
// time filtering happen here rather than in a key condition.
func (s *Store) roomMessages(ctx context.Context, roomID string) ([]model.Message, error) {
	items, err := s.queryByIndex(ctx, model.MessagesTable, IndexByRoom, "roomId", roomID, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	messages, err := unmarshalAll[model.Message](items)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func (s *Store) GetLastNonSystemMessage(ctx context.Context, roomID string) (model.Message, error) {
	messages, err := s.roomMessages(ctx, roomID)
	if err != nil {
		return model.Message{}, err
	}
	return lastNonSystem(messages)
}

func lastNonSystem(messages []model.Message) (model.Message, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].SenderType != model.SenderSystem {
			return messages[i], nil
		}
	}
	return model.Message{}, model.ErrNotFound
}

func (s *Store) ListSystemMessagesSince(ctx context.Context, roomID string, since time.Time) ([]model.Message, error) {
	messages, err := s.roomMessages(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return systemSince(messages, since), nil
}

func systemSince(messages []model.Message, since time.Time) []model.Message {
	var out []model.Message
	for _, m := range messages {
		if m.SenderType == model.SenderSystem && !m.CreatedAt.Before(since) {
			out = append(out, m)
		}
	}
	return out
}
