package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"consultly/models"
)

const (
	maxExperienceYears   = 20
	summerMultiplier     = 1.1
	winterMultiplier     = 0.9
	peakHoursMultiplier  = 1.2
	weekendMultiplier    = 0.9
	platinumMultiplier   = 0.85
	goldMultiplier       = 0.9
	silverMultiplier     = 0.95
	urgencyMultiplier    = 1.3
	holidayMultiplier    = 0.9
	businessHoursStart   = 9
	businessHoursEnd     = 18 // exclusive
	platinumThreshold    = 20
	goldThreshold        = 10
	silverThreshold      = 5
	experienceFactorName = "Experience"
	urgencyFactorName    = "Urgent Booking Fee"
	holidayFactorPrefix  = "Holiday: "
)

// ExperienceFactor adds one percent per year of experience, capped at twenty years.
func ExperienceFactor(years int) (models.AppliedFactor, bool) {
	if years <= 0 {
		return models.AppliedFactor{}, false
	}
	if years > maxExperienceYears {
		years = maxExperienceYears
	}
	return models.AppliedFactor{
		Name:       experienceFactorName,
		Multiplier: decimal.NewFromInt(1).Add(decimal.New(int64(years), -2)).InexactFloat64(),
	}, true
}

func SeasonFactor(at time.Time) (models.AppliedFactor, bool) {
	switch at.Month() {
	case time.June, time.July, time.August:
		return models.AppliedFactor{Name: "Summer Peak", Multiplier: summerMultiplier}, true
	case time.December, time.January, time.February:
		return models.AppliedFactor{Name: "Winter Discount", Multiplier: winterMultiplier}, true
	}
	return models.AppliedFactor{}, false
}

// DemandFactor charges weekday business hours (09:00-17:59) and discounts weekends.
func DemandFactor(at time.Time) (models.AppliedFactor, bool) {
	switch at.Weekday() {
	case time.Saturday, time.Sunday:
		return models.AppliedFactor{Name: "Weekend Discount", Multiplier: weekendMultiplier}, true
	}
	if h := at.Hour(); h >= businessHoursStart && h < businessHoursEnd {
		return models.AppliedFactor{Name: "Peak Hours", Multiplier: peakHoursMultiplier}, true
	}
	return models.AppliedFactor{}, false
}

func LoyaltyFactor(consultationCount int) (models.AppliedFactor, bool) {
	switch {
	case consultationCount > platinumThreshold:
		return models.AppliedFactor{Name: "Platinum", Multiplier: platinumMultiplier}, true
	case consultationCount > goldThreshold:
		return models.AppliedFactor{Name: "Gold", Multiplier: goldMultiplier}, true
	case consultationCount > silverThreshold:
		return models.AppliedFactor{Name: "Silver", Multiplier: silverMultiplier}, true
	}
	return models.AppliedFactor{}, false
}

// UrgencyFactor applies when the booking lead time does not exceed the tariff's notice window.
func UrgencyFactor(leadHours, minimumNoticeHours float64) (models.AppliedFactor, bool) {
	if leadHours <= minimumNoticeHours {
		return models.AppliedFactor{Name: urgencyFactorName, Multiplier: urgencyMultiplier}, true
	}
	return models.AppliedFactor{}, false
}

func HolidayFactor(at time.Time) (models.AppliedFactor, bool) {
	label, ok := HolidayOn(at)
	if !ok {
		return models.AppliedFactor{}, false
	}
	return models.AppliedFactor{Name: holidayFactorPrefix + label, Multiplier: holidayMultiplier}, true
}

// Step binds one catalog factor to the part of the pricing context it reads.
// local is the scheduled time converted to the pricing time zone.
type Step struct {
	Key  string
	eval func(pc models.PricingContext, local time.Time) (models.AppliedFactor, bool)
}

// NewStep builds a step from an evaluation function.
func NewStep(key string, eval func(pc models.PricingContext, local time.Time) (models.AppliedFactor, bool)) Step {
	return Step{Key: key, eval: eval}
}

// Sequence is the ordered factor chain. Changing the order changes rounding
// outcomes, so any change must ship under a new Version.
type Sequence struct {
	Version string
	Steps   []Step
}

// Keys lists the step keys in application order.
func (s Sequence) Keys() []string {
	keys := make([]string, len(s.Steps))
	for i, st := range s.Steps {
		keys[i] = st.Key
	}
	return keys
}

// DefaultSequence supersedes the earlier chain that also carried
// last-minute and day-of-week multipliers.
var DefaultSequence = Sequence{
	Version: "2024.2",
	Steps: []Step{
		{Key: "experience", eval: func(pc models.PricingContext, _ time.Time) (models.AppliedFactor, bool) {
			return ExperienceFactor(pc.ExperienceYears)
		}},
		{Key: "season", eval: func(_ models.PricingContext, local time.Time) (models.AppliedFactor, bool) {
			return SeasonFactor(local)
		}},
		{Key: "demand", eval: func(_ models.PricingContext, local time.Time) (models.AppliedFactor, bool) {
			return DemandFactor(local)
		}},
		{Key: "loyalty", eval: func(pc models.PricingContext, _ time.Time) (models.AppliedFactor, bool) {
			return LoyaltyFactor(pc.ConsultationCount)
		}},
		{Key: "urgency", eval: func(pc models.PricingContext, _ time.Time) (models.AppliedFactor, bool) {
			return UrgencyFactor(pc.ScheduledAt.Sub(pc.Now).Hours(), pc.Tariff.NoticeHours())
		}},
		{Key: "holiday", eval: func(_ models.PricingContext, local time.Time) (models.AppliedFactor, bool) {
			return HolidayFactor(local)
		}},
	},
}
