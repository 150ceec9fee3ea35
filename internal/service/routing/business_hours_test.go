package routing

import (
	"testing"
	"time"

	"chat-routing-backend/internal/model"
)

// 2024-01-01 is a Monday.
func monday(hour, minute, second int) time.Time {
	return time.Date(2024, 1, 1, hour, minute, second, 0, time.UTC)
}

func TestIsOpenAtBoundsAreInclusive(t *testing.T) {
	windows := []model.BusinessHoursWindow{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "18:00", IsActive: true},
	}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before start", monday(8, 59, 0), false},
		{"at start", monday(9, 0, 0), true},
		{"midday", monday(13, 30, 0), true},
		{"at end", monday(18, 0, 0), true},
		{"one second after end", monday(18, 0, 1), false},
		{"after end", monday(18, 1, 0), false},
		{"sunday", monday(12, 0, 0).AddDate(0, 0, -1), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsOpenAt(windows, tc.at); got != tc.want {
				t.Fatalf("IsOpenAt(%s) = %v, want %v", tc.at.Format(time.RFC3339), got, tc.want)
			}
		})
	}
}

func TestIsOpenAtWithoutWindows(t *testing.T) {
	if !IsOpenAt(nil, monday(3, 0, 0)) {
		t.Fatal("tenant without business hours should be open")
	}
}

func TestIsOpenAtIgnoresInactiveAndMalformedWindows(t *testing.T) {
	windows := []model.BusinessHoursWindow{
		{DayOfWeek: 1, StartTime: "00:00", EndTime: "23:59", IsActive: false},
		{DayOfWeek: 1, StartTime: "nine", EndTime: "18:00", IsActive: true},
	}
	if IsOpenAt(windows, monday(12, 0, 0)) {
		t.Fatal("inactive or malformed windows must not open the tenant")
	}
}

func TestParseClock(t *testing.T) {
	if got, err := ParseClock("09:30"); err != nil || got != 9*3600+30*60 {
		t.Fatalf("ParseClock(09:30) = %d, %v", got, err)
	}
	if got, err := ParseClock("18:00:59"); err != nil || got != 18*3600+59 {
		t.Fatalf("ParseClock(18:00:59) = %d, %v", got, err)
	}
	for _, bad := range []string{"", "9", "24:00", "12:60", "a:b"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestTenantLocation(t *testing.T) {
	if loc, ok := TenantLocation(""); !ok || loc != time.UTC {
		t.Fatalf("empty timezone should be UTC, got %v %v", loc, ok)
	}
	if loc, ok := TenantLocation("Not/AZone"); ok || loc != time.UTC {
		t.Fatalf("unknown timezone should fall back to UTC, got %v %v", loc, ok)
	}
	loc, ok := TenantLocation("America/Sao_Paulo")
	if !ok || loc.String() != "America/Sao_Paulo" {
		t.Fatalf("expected Sao Paulo location, got %v %v", loc, ok)
	}
}
