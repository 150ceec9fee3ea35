// Package memory is an in-process record store. It backs the unit tests and
// local development; every mutation happens under one mutex so the counter
// arithmetic is as atomic as the database backends.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat-routing-backend/internal/model"
)

type Store struct {
	mu sync.Mutex

	tenants    map[string]model.TenantItem
	rooms      map[string]model.Room
	attendants map[string]model.Attendant
	teams      map[string]model.Team
	members    []model.TeamMember
	categories map[string]model.ServiceCategory
	routing    []model.CategoryRouting
	hours      []model.BusinessHoursWindow
	rules      []model.AutoRule
	messages   map[string][]model.Message
}

func New() *Store {
	return &Store{
		tenants:    make(map[string]model.TenantItem),
		rooms:      make(map[string]model.Room),
		attendants: make(map[string]model.Attendant),
		teams:      make(map[string]model.Team),
		categories: make(map[string]model.ServiceCategory),
		messages:   make(map[string][]model.Message),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) PutTenant(tenant model.TenantItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[tenant.TenantID] = tenant
}

func (s *Store) GetTenant(_ context.Context, tenantID string) (model.TenantItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenant, ok := s.tenants[tenantID]
	if !ok {
		return model.TenantItem{}, model.ErrNotFound
	}
	return tenant, nil
}

func (s *Store) ListTenantIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.tenants))
	for id := range s.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) PutRoom(room model.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.RoomID] = room
}

func (s *Store) DeleteRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

func (s *Store) GetRoom(_ context.Context, roomID string) (model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return model.Room{}, model.ErrNotFound
	}
	return room, nil
}

func (s *Store) UpdateRoom(_ context.Context, roomID string, update model.RoomUpdate, expected ...model.RoomStatus) (model.Room, error) {
	if err := update.Validate(); err != nil {
		return model.Room{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return model.Room{}, model.ErrNotFound
	}
	if !update.Matches(room, expected...) {
		return model.Room{}, model.ErrConditionFailed
	}
	room = update.Apply(room)
	s.rooms[roomID] = room
	return room, nil
}

func (s *Store) ListOpenRoomsByTenant(_ context.Context, tenantID string) ([]model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rooms []model.Room
	for _, room := range s.rooms {
		if room.TenantID == tenantID && room.Status.IsOpen() {
			rooms = append(rooms, room)
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func (s *Store) CountOpenRoomsByAttendant(_ context.Context, attendantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, room := range s.rooms {
		if room.AttendantID == attendantID && room.Status.IsOpen() {
			count++
		}
	}
	return count, nil
}

func (s *Store) PutAttendant(attendant model.Attendant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendants[attendant.AttendantID] = attendant
}

func (s *Store) GetAttendant(_ context.Context, attendantID string) (model.Attendant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attendant, ok := s.attendants[attendantID]
	if !ok {
		return model.Attendant{}, model.ErrNotFound
	}
	return attendant, nil
}

func (s *Store) IncrementAttendantCapacity(_ context.Context, attendantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attendant, ok := s.attendants[attendantID]
	if !ok {
		return 0, model.ErrNotFound
	}
	attendant.ActiveConversations++
	s.attendants[attendantID] = attendant
	return attendant.ActiveConversations, nil
}

func (s *Store) DecrementAttendantCapacity(_ context.Context, attendantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attendant, ok := s.attendants[attendantID]
	if !ok {
		return 0, model.ErrNotFound
	}
	if attendant.ActiveConversations > 0 {
		attendant.ActiveConversations--
	} else {
		attendant.ActiveConversations = 0
	}
	s.attendants[attendantID] = attendant
	return attendant.ActiveConversations, nil
}

func (s *Store) SetAttendantCapacity(_ context.Context, attendantID string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attendant, ok := s.attendants[attendantID]
	if !ok {
		return model.ErrNotFound
	}
	if count < 0 {
		count = 0
	}
	attendant.ActiveConversations = count
	s.attendants[attendantID] = attendant
	return nil
}

func (s *Store) PutTeam(team model.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[team.TeamID] = team
}

func (s *Store) AddTeamMember(teamID, attendantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = append(s.members, model.TeamMember{
		PK:          model.TeamMemberPK(teamID, attendantID),
		TeamID:      teamID,
		AttendantID: attendantID,
		TenantID:    s.teams[teamID].TenantID,
	})
}

func (s *Store) ListTeamAttendants(_ context.Context, teamID string, onlineOnly bool) ([]model.Attendant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Attendant
	for _, member := range s.members {
		if member.TeamID != teamID {
			continue
		}
		attendant, ok := s.attendants[member.AttendantID]
		if !ok {
			continue
		}
		if onlineOnly && attendant.OnlineStatus != model.OnlineStatusOnline {
			continue
		}
		out = append(out, attendant)
	}
	return out, nil
}

func (s *Store) PutCategory(category model.ServiceCategory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[category.CategoryID] = category
}

func (s *Store) GetCategory(_ context.Context, categoryID string) (model.ServiceCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	category, ok := s.categories[categoryID]
	if !ok {
		return model.ServiceCategory{}, model.ErrNotFound
	}
	return category, nil
}

func (s *Store) GetDefaultCategory(_ context.Context, tenantID string) (model.ServiceCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, category := range s.categories {
		if category.TenantID == tenantID && category.IsDefault {
			return category, nil
		}
	}
	return model.ServiceCategory{}, model.ErrNotFound
}

func (s *Store) PutCategoryRouting(row model.CategoryRouting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row.PK = model.CategoryRoutingPK(row.CategoryID, row.TeamID)
	s.routing = append(s.routing, row)
}

func (s *Store) ResolveCategoryRouting(_ context.Context, categoryID string) ([]model.TeamRoute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []model.CategoryRouting
	for _, row := range s.routing {
		if row.CategoryID == categoryID {
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Position != rows[j].Position {
			return rows[i].Position < rows[j].Position
		}
		return rows[i].TeamID < rows[j].TeamID
	})

	routes := make([]model.TeamRoute, 0, len(rows))
	for _, row := range rows {
		team, ok := s.teams[row.TeamID]
		if !ok {
			continue
		}
		routes = append(routes, model.TeamRoute{Team: team, Config: row.Config})
	}
	return routes, nil
}

func (s *Store) PutBusinessHours(window model.BusinessHoursWindow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hours = append(s.hours, window)
}

func (s *Store) ListBusinessHours(_ context.Context, tenantID string) ([]model.BusinessHoursWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.BusinessHoursWindow
	for _, w := range s.hours {
		if w.TenantID == tenantID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Store) PutAutoRule(rule model.AutoRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rule)
}

func (s *Store) ListAutoRules(_ context.Context, tenantID string, types []model.RuleType, enabledOnly bool) ([]model.AutoRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AutoRule
	for _, rule := range s.rules {
		if rule.TenantID != tenantID {
			continue
		}
		if enabledOnly && !rule.IsEnabled {
			continue
		}
		if len(types) > 0 && !containsRuleType(types, rule.RuleType) {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func (s *Store) InsertMessage(_ context.Context, message model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[message.RoomID] = append(s.messages[message.RoomID], message)
	return nil
}

func (s *Store) GetLastNonSystemMessage(_ context.Context, roomID string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		last  model.Message
		found bool
	)
	for _, msg := range s.messages[roomID] {
		if msg.SenderType == model.SenderSystem {
			continue
		}
		if !found || !msg.CreatedAt.Before(last.CreatedAt) {
			last = msg
			found = true
		}
	}
	if !found {
		return model.Message{}, model.ErrNotFound
	}
	return last, nil
}

func (s *Store) ListSystemMessagesSince(_ context.Context, roomID string, since time.Time) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for _, msg := range s.messages[roomID] {
		if msg.SenderType == model.SenderSystem && !msg.CreatedAt.Before(since) {
			out = append(out, msg)
		}
	}
	return out, nil
}

// Messages returns a copy of every message stored for the room.
func (s *Store) Messages(roomID string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages[roomID]))
	copy(out, s.messages[roomID])
	return out
}

func containsRuleType(types []model.RuleType, ruleType model.RuleType) bool {
	for _, t := range types {
		if t == ruleType {
			return true
		}
	}
	return false
}
