package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExperienceFactor(t *testing.T) {
	cases := []struct {
		years int
		want  float64
		ok    bool
	}{
		{0, 0, false},
		{-3, 0, false},
		{1, 1.01, true},
		{5, 1.05, true},
		{20, 1.2, true},
		{35, 1.2, true},
	}
	for _, tc := range cases {
		f, ok := ExperienceFactor(tc.years)
		assert.Equal(t, tc.ok, ok, "years %d", tc.years)
		if ok {
			assert.Equal(t, "Experience", f.Name)
			assert.Equal(t, tc.want, f.Multiplier, "years %d", tc.years)
		}
	}
}

func TestSeasonFactor(t *testing.T) {
	summer, ok := SeasonFactor(time.Date(2026, time.July, 15, 10, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, "Summer Peak", summer.Name)
	assert.Equal(t, 1.1, summer.Multiplier)

	winter, ok := SeasonFactor(time.Date(2026, time.January, 14, 10, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, "Winter Discount", winter.Name)
	assert.Equal(t, 0.9, winter.Multiplier)

	_, ok = SeasonFactor(time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestDemandFactor(t *testing.T) {
	cases := map[string]struct {
		at   time.Time
		name string
	}{
		"weekday opening hour": {time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC), "Peak Hours"},
		"weekday last hour":    {time.Date(2026, time.October, 14, 17, 59, 0, 0, time.UTC), "Peak Hours"},
		"weekday closing":      {time.Date(2026, time.October, 14, 18, 0, 0, 0, time.UTC), ""},
		"weekday early":        {time.Date(2026, time.October, 14, 8, 59, 0, 0, time.UTC), ""},
		"saturday midday":      {time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC), "Weekend Discount"},
		"sunday evening":       {time.Date(2026, time.October, 18, 21, 0, 0, 0, time.UTC), "Weekend Discount"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f, ok := DemandFactor(tc.at)
			assert.Equal(t, tc.name != "", ok)
			assert.Equal(t, tc.name, f.Name)
		})
	}
}

func TestLoyaltyFactorTiers(t *testing.T) {
	cases := []struct {
		count int
		name  string
		mult  float64
	}{
		{0, "", 0},
		{5, "", 0},
		{6, "Silver", 0.95},
		{10, "Silver", 0.95},
		{11, "Gold", 0.9},
		{20, "Gold", 0.9},
		{21, "Platinum", 0.85},
	}
	for _, tc := range cases {
		f, ok := LoyaltyFactor(tc.count)
		assert.Equal(t, tc.name != "", ok, "count %d", tc.count)
		assert.Equal(t, tc.name, f.Name, "count %d", tc.count)
		assert.Equal(t, tc.mult, f.Multiplier, "count %d", tc.count)
	}
}

func TestUrgencyFactorBoundary(t *testing.T) {
	f, ok := UrgencyFactor(24, 24)
	assert.True(t, ok)
	assert.Equal(t, "Urgent Booking Fee", f.Name)
	assert.Equal(t, 1.3, f.Multiplier)

	_, ok = UrgencyFactor(24.01, 24)
	assert.False(t, ok)

	_, ok = UrgencyFactor(3, 2)
	assert.False(t, ok)
}

func TestHolidayFactorLabelsTheHoliday(t *testing.T) {
	f, ok := HolidayFactor(time.Date(2026, time.April, 6, 15, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, "Holiday: Easter Monday", f.Name)
	assert.Equal(t, 0.9, f.Multiplier)

	_, ok = HolidayFactor(time.Date(2026, time.October, 12, 15, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}
