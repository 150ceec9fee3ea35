package routing

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"chat-routing-backend/internal/model"
)

var locationCache sync.Map

// TenantLocation resolves a tenant's IANA timezone. Empty or unknown names
// resolve to UTC; the boolean reports whether the name was usable.
func TenantLocation(name string) (*time.Location, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, true
	}
	if cached, ok := locationCache.Load(name); ok {
		return cached.(*time.Location), true
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, false
	}
	locationCache.Store(name, loc)
	return loc, true
}

// IsOpenAt reports whether local falls inside any active window for its
// weekday. Both window bounds are inclusive. A tenant without windows is
// always open.
func IsOpenAt(windows []model.BusinessHoursWindow, local time.Time) bool {
	if len(windows) == 0 {
		return true
	}

	weekday := int(local.Weekday())
	secondOfDay := local.Hour()*3600 + local.Minute()*60 + local.Second()

	for _, w := range windows {
		if !w.IsActive || w.DayOfWeek != weekday {
			continue
		}
		start, err := ParseClock(w.StartTime)
		if err != nil {
			continue
		}
		end, err := ParseClock(w.EndTime)
		if err != nil {
			continue
		}
		if start <= secondOfDay && secondOfDay <= end {
			return true
		}
	}
	return false
}

// ParseClock converts "HH:MM" or "HH:MM:SS" into seconds since midnight.
func ParseClock(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}

	limits := []int{23, 59, 59}
	multipliers := []int{3600, 60, 1}
	total := 0
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("invalid clock value %q", value)
		}
		total += n * multipliers[i]
	}
	return total, nil
}
