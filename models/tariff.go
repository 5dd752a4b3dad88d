package models

import (
	"math"
	"time"
)

// PriceModel selects how a tariff's base amount is derived from the booking duration.
type PriceModel string

const (
	PriceModelFixed    PriceModel = "Fixed"
	PriceModelHourly   PriceModel = "Hourly"
	PriceModelVariable PriceModel = "Variable"
)

// CancellationPolicy selects the refund table applied when a consultation is cancelled.
type CancellationPolicy string

const (
	CancellationFlexible CancellationPolicy = "Flexible"
	CancellationModerate CancellationPolicy = "Moderate"
	CancellationStrict   CancellationPolicy = "Strict"
)

// DefaultMinimumNoticeHours is used when a tariff does not set its own notice window.
const DefaultMinimumNoticeHours = 24

// AddOn is an optional extra a client can attach to a consultation.
type AddOn struct {
	Name        string  `bson:"name" json:"name"`
	Description string  `bson:"description,omitempty" json:"description,omitempty"`
	Price       float64 `bson:"price" json:"price"`
}

// ServiceTariff is the catalog price definition of a consultation service.
// It is maintained by catalog management and read-only to booking.
type ServiceTariff struct {
	ID                 string             `bson:"id" json:"id"`
	Name               string             `bson:"name" json:"name"`
	Category           string             `bson:"category" json:"category"`
	BasePrice          float64            `bson:"basePrice" json:"basePrice"`
	Currency           string             `bson:"currency" json:"currency"`
	PriceModel         PriceModel         `bson:"priceModel" json:"priceModel"`
	MinimumNoticeHours *float64           `bson:"minimumNoticeTime,omitempty" json:"minimumNoticeTime,omitempty"`
	AddOns             []AddOn            `bson:"additionalOptions" json:"additionalOptions"`
	Specializations    []string           `bson:"requiredSpecializations" json:"requiredSpecializations"`
	CancellationPolicy CancellationPolicy `bson:"cancellationPolicy" json:"cancellationPolicy"`
	IsActive           bool               `bson:"isActive" json:"isActive"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// FindAddOn looks up an add-on by its exact name.
func (t ServiceTariff) FindAddOn(name string) (AddOn, bool) {
	for _, a := range t.AddOns {
		if a.Name == name {
			return a, true
		}
	}
	return AddOn{}, false
}

func (t ServiceTariff) SupportsSpecialization(s string) bool {
	return contains(t.Specializations, s)
}

// NoticeHours returns the minimum notice window, defaulting to 24 hours when
// the tariff leaves it out. An explicit zero means no notice is required.
func (t ServiceTariff) NoticeHours() float64 {
	if t.MinimumNoticeHours == nil {
		return DefaultMinimumNoticeHours
	}
	return math.Max(*t.MinimumNoticeHours, 0)
}

// Policy returns the cancellation policy, defaulting to Moderate.
func (t ServiceTariff) Policy() CancellationPolicy {
	switch t.CancellationPolicy {
	case CancellationFlexible, CancellationStrict:
		return t.CancellationPolicy
	default:
		return CancellationModerate
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
