package models

import "time"

// AppliedFactor is one step of the multiplier chain that produced a quote.
type AppliedFactor struct {
	Name       string  `bson:"name" json:"name"`
	Multiplier float64 `bson:"multiplier" json:"multiplier"`
}

// PricingContext bundles everything the pricing engine reads. It is never persisted.
type PricingContext struct {
	Tariff            ServiceTariff
	DurationMinutes   int
	AddOns            []string
	ExperienceYears   int
	ScheduledAt       time.Time
	ConsultationCount int
	Now               time.Time
}

// PriceQuote is the immutable result of a price computation.
type PriceQuote struct {
	Amount         float64         `bson:"amount" json:"amount"`
	Currency       string          `bson:"currency" json:"currency"`
	BaseAmount     float64         `bson:"baseAmount" json:"baseAmount"`
	AddOnsAmount   float64         `bson:"addOnsAmount" json:"addOnsAmount"`
	AppliedFactors []AppliedFactor `bson:"appliedFactors" json:"appliedFactors"`
	FactorSequence string          `bson:"factorSequence" json:"factorSequence"`
	Fallback       bool            `bson:"fallback,omitempty" json:"fallback,omitempty"`
	FallbackReason string          `bson:"fallbackReason,omitempty" json:"fallbackReason,omitempty"`
}
