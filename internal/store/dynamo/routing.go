package dynamo

import (
	"context"
	"fmt"
	"sort"

	"chat-routing-backend/internal/database"
	"chat-routing-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func (s *Store) GetTenant(ctx context.Context, tenantID string) (model.TenantItem, error) {
	var tenant model.TenantItem
	if err := s.client.GetItem(ctx, model.TenantsTable, key("tenantId", tenantID), &tenant); err != nil {
		return model.TenantItem{}, translate(err)
	}
	return tenant, nil
}

func (s *Store) ListTenantIDs(ctx context.Context) ([]string, error) {
	items, err := s.client.ScanAll(ctx, model.TenantsTable, aws.String("tenantId"))
	if err != nil {
		return nil, err
	}
	tenants, err := unmarshalAll[model.TenantItem](items)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tenants))
	for _, t := range tenants {
		ids = append(ids, t.TenantID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) PutTenant(ctx context.Context, tenant model.TenantItem) error {
	return s.client.PutItem(ctx, model.TenantsTable, tenant)
}

func (s *Store) GetCategory(ctx context.Context, categoryID string) (model.ServiceCategory, error) {
	var c model.ServiceCategory
	if err := s.client.GetItem(ctx, model.ServiceCategoriesTable, key("categoryId", categoryID), &c); err != nil {
		return model.ServiceCategory{}, translate(err)
	}
	return c, nil
}

func (s *Store) GetDefaultCategory(ctx context.Context, tenantID string) (model.ServiceCategory, error) {
	filter := "#isDefault = :true"
	items, err := s.queryByIndex(ctx, model.ServiceCategoriesTable, IndexByTenant, "tenantId", tenantID, &filter,
		map[string]types.AttributeValue{":true": database.AttrBool(true)},
		map[string]string{"#isDefault": "isDefault"},
	)
	if err != nil {
		return model.ServiceCategory{}, err
	}
	categories, err := unmarshalAll[model.ServiceCategory](items)
	if err != nil {
		return model.ServiceCategory{}, err
	}
	if len(categories) == 0 {
		return model.ServiceCategory{}, fmt.Errorf("default category for %s: %w", tenantID, model.ErrNotFound)
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].CategoryID < categories[j].CategoryID
	})
	return categories[0], nil
}

// ResolveCategoryRouting joins the routing rows of a category with their
// teams. Rows whose team no longer exists are dropped.
func (s *Store) ResolveCategoryRouting(ctx context.Context, categoryID string) ([]model.TeamRoute, error) {
	items, err := s.queryByIndex(ctx, model.CategoryRoutingTable, IndexByCategory, "categoryId", categoryID, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	rows, err := unmarshalAll[model.CategoryRouting](items)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	sortRoutingRows(rows)

	ids := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		if !seen[r.TeamID] {
			seen[r.TeamID] = true
			ids = append(ids, r.TeamID)
		}
	}
	teamItems, err := s.client.BatchGetByKeys(ctx, model.TeamsTable, ids, "teamId", 100)
	if err != nil {
		return nil, err
	}
	teams, err := unmarshalAll[model.Team](teamItems)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Team, len(teams))
	for _, t := range teams {
		byID[t.TeamID] = t
	}

	routes := make([]model.TeamRoute, 0, len(rows))
	for _, r := range rows {
		team, ok := byID[r.TeamID]
		if !ok {
			continue
		}
		routes = append(routes, model.TeamRoute{Team: team, Config: r.Config})
	}
	return routes, nil
}

func (s *Store) ListBusinessHours(ctx context.Context, tenantID string) ([]model.BusinessHoursWindow, error) {
	items, err := s.queryByIndex(ctx, model.BusinessHoursTable, IndexByTenant, "tenantId", tenantID, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	return unmarshalAll[model.BusinessHoursWindow](items)
}
