package postgres

import (
	"context"
	"fmt"
	"time"

	"chat-routing-backend/internal/model"

	"github.com/jackc/pgx/v5"
)

func (s *Store) GetTenant(ctx context.Context, tenantID string) (model.TenantItem, error) {
	var tenant model.TenantItem
	var created time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT tenant_id, name, plan, seats, timezone, created_at
		FROM tenants WHERE tenant_id = $1`,
		tenantID,
	).Scan(&tenant.TenantID, &tenant.Name, &tenant.Plan, &tenant.Seats, &tenant.Timezone, &created)
	if err != nil {
		if isNoRows(err) {
			return model.TenantItem{}, model.ErrNotFound
		}
		return model.TenantItem{}, fmt.Errorf("postgres: get tenant: %w", err)
	}
	tenant.Created = created.UTC().Format(time.RFC3339)
	return tenant, nil
}

func (s *Store) ListTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT tenant_id FROM tenants ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tenants: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan tenants: %w", err)
	}
	return ids, nil
}

const attendantColumns = `a.attendant_id, a.tenant_id, a.display_name, a.email, a.online_status, a.active_conversations`

func scanAttendant(row pgx.Row) (model.Attendant, error) {
	var a model.Attendant
	var status string
	if err := row.Scan(&a.AttendantID, &a.TenantID, &a.DisplayName, &a.Email, &status, &a.ActiveConversations); err != nil {
		return model.Attendant{}, err
	}
	a.OnlineStatus = model.OnlineStatus(status)
	return a, nil
}

func (s *Store) GetAttendant(ctx context.Context, attendantID string) (model.Attendant, error) {
	a, err := scanAttendant(s.pool.QueryRow(ctx,
		`SELECT `+attendantColumns+` FROM attendants a WHERE a.attendant_id = $1`, attendantID))
	if err != nil {
		if isNoRows(err) {
			return model.Attendant{}, model.ErrNotFound
		}
		return model.Attendant{}, fmt.Errorf("postgres: get attendant: %w", err)
	}
	return a, nil
}

func (s *Store) IncrementAttendantCapacity(ctx context.Context, attendantID string) (int, error) {
	return s.updateCapacity(ctx, `
		UPDATE attendants SET active_conversations = active_conversations + 1
		WHERE attendant_id = $1
		RETURNING active_conversations`, attendantID)
}

func (s *Store) DecrementAttendantCapacity(ctx context.Context, attendantID string) (int, error) {
	return s.updateCapacity(ctx, `
		UPDATE attendants SET active_conversations = GREATEST(active_conversations - 1, 0)
		WHERE attendant_id = $1
		RETURNING active_conversations`, attendantID)
}

func (s *Store) updateCapacity(ctx context.Context, query, attendantID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, query, attendantID).Scan(&n); err != nil {
		if isNoRows(err) {
			return 0, model.ErrNotFound
		}
		return 0, fmt.Errorf("postgres: update capacity: %w", err)
	}
	return n, nil
}

func (s *Store) SetAttendantCapacity(ctx context.Context, attendantID string, count int) error {
	if count < 0 {
		count = 0
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE attendants SET active_conversations = $2 WHERE attendant_id = $1`,
		attendantID, count,
	)
	if err != nil {
		return fmt.Errorf("postgres: set capacity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) ListTeamAttendants(ctx context.Context, teamID string, onlineOnly bool) ([]model.Attendant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+attendantColumns+`
		FROM attendants a
		JOIN team_members m ON m.attendant_id = a.attendant_id
		WHERE m.team_id = $1 AND (NOT $2 OR a.online_status = $3)
		ORDER BY a.attendant_id`,
		teamID, onlineOnly, string(model.OnlineStatusOnline),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list team attendants: %w", err)
	}
	defer rows.Close()

	var out []model.Attendant
	for rows.Next() {
		a, err := scanAttendant(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan attendant: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, categoryID string) (model.ServiceCategory, error) {
	return s.getCategory(ctx, `WHERE category_id = $1`, categoryID)
}

func (s *Store) GetDefaultCategory(ctx context.Context, tenantID string) (model.ServiceCategory, error) {
	return s.getCategory(ctx, `WHERE tenant_id = $1 AND is_default`, tenantID)
}

func (s *Store) getCategory(ctx context.Context, where string, arg string) (model.ServiceCategory, error) {
	var c model.ServiceCategory
	err := s.pool.QueryRow(ctx,
		`SELECT category_id, tenant_id, name, is_default FROM service_categories `+where+` LIMIT 1`, arg,
	).Scan(&c.CategoryID, &c.TenantID, &c.Name, &c.IsDefault)
	if err != nil {
		if isNoRows(err) {
			return model.ServiceCategory{}, model.ErrNotFound
		}
		return model.ServiceCategory{}, fmt.Errorf("postgres: get category: %w", err)
	}
	return c, nil
}

func (s *Store) ResolveCategoryRouting(ctx context.Context, categoryID string) ([]model.TeamRoute, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.team_id, t.tenant_id, t.name,
		       r.enabled, r.online_only, r.capacity_limit, r.allow_over_capacity
		FROM category_routing r
		JOIN teams t ON t.team_id = r.team_id
		WHERE r.category_id = $1
		ORDER BY r.position ASC, r.team_id ASC`,
		categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: resolve category routing: %w", err)
	}
	defer rows.Close()

	var routes []model.TeamRoute
	for rows.Next() {
		var r model.TeamRoute
		if err := rows.Scan(
			&r.Team.TeamID, &r.Team.TenantID, &r.Team.Name,
			&r.Config.Enabled, &r.Config.OnlineOnly, &r.Config.CapacityLimit, &r.Config.AllowOverCapacity,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan routing: %w", err)
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

func (s *Store) ListBusinessHours(ctx context.Context, tenantID string) ([]model.BusinessHoursWindow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT window_id, tenant_id, day_of_week, start_time, end_time, is_active
		FROM business_hours WHERE tenant_id = $1`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list business hours: %w", err)
	}
	defer rows.Close()

	var out []model.BusinessHoursWindow
	for rows.Next() {
		var w model.BusinessHoursWindow
		if err := rows.Scan(&w.WindowID, &w.TenantID, &w.DayOfWeek, &w.StartTime, &w.EndTime, &w.IsActive); err != nil {
			return nil, fmt.Errorf("postgres: scan business hours: %w", err)
		}
		w.PK = w.WindowID
		out = append(out, w)
	}
	return out, rows.Err()
}
