package pricing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"consultly/models"
)

// DefaultMinimumCharge is the floor under which no quote is issued.
const DefaultMinimumCharge = 0.50

// PricingEngine turns a pricing context into a quote.
type PricingEngine interface {
	ComputePrice(pc models.PricingContext) (models.PriceQuote, error)
}

// Engine is the default PricingEngine. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	sequence  Sequence
	minCharge decimal.Decimal
	location  *time.Location
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Engine)

func WithMinimumCharge(amount float64) Option {
	return func(e *Engine) {
		if amount >= 0 && !math.IsNaN(amount) && !math.IsInf(amount, 0) {
			e.minCharge = decimal.NewFromFloat(amount)
		}
	}
}

// WithLocation sets the time zone that season, demand and holiday factors are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

func WithSequence(seq Sequence) Option {
	return func(e *Engine) { e.sequence = seq }
}

// WithClock is used when the context does not carry its own evaluation instant.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		sequence:  DefaultSequence,
		minCharge: decimal.NewFromFloat(DefaultMinimumCharge),
		location:  time.UTC,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sequence returns the factor chain this engine applies.
func (e *Engine) Sequence() Sequence {
	return e.sequence
}

// ComputePrice derives the chargeable amount:
//
//	(base + add-ons) * f1 * f2 * ... rounded half-up to 2 decimals
//
// If the result is non-finite or under the minimum charge the quote falls back
// to base + add-ons with an empty factor trail. The fallback is flagged on the
// quote and logged; it is not an error.
func (e *Engine) ComputePrice(pc models.PricingContext) (models.PriceQuote, error) {
	base, err := baseAmount(pc.Tariff, pc.DurationMinutes)
	if err != nil {
		return models.PriceQuote{}, err
	}
	addOns, err := addOnsAmount(pc.Tariff, pc.AddOns)
	if err != nil {
		return models.PriceQuote{}, err
	}

	if pc.Now.IsZero() {
		pc.Now = e.now()
	}
	local := pc.ScheduledAt.In(e.location)

	subtotal := base.Add(addOns)
	running := subtotal
	applied := make([]models.AppliedFactor, 0, len(e.sequence.Steps))
	finite := true
	for _, step := range e.sequence.Steps {
		f, ok := step.eval(pc, local)
		if !ok {
			continue
		}
		if math.IsNaN(f.Multiplier) || math.IsInf(f.Multiplier, 0) {
			finite = false
			break
		}
		running = running.Mul(decimal.NewFromFloat(f.Multiplier))
		applied = append(applied, f)
	}

	quote := models.PriceQuote{
		Currency:       pc.Tariff.Currency,
		BaseAmount:     base.Round(2).InexactFloat64(),
		AddOnsAmount:   addOns.Round(2).InexactFloat64(),
		FactorSequence: e.sequence.Version,
	}

	final := running.Round(2)
	switch {
	case !finite:
		quote.FallbackReason = "non-finite factor multiplier"
	case final.LessThan(e.minCharge):
		quote.FallbackReason = "factored amount below minimum charge"
	default:
		quote.Amount = final.InexactFloat64()
		quote.AppliedFactors = applied
		return quote, nil
	}

	quote.Fallback = true
	quote.AppliedFactors = []models.AppliedFactor{}
	fallback := subtotal.Round(2)
	if fallback.LessThan(e.minCharge) {
		fallback = e.minCharge.Round(2)
		quote.FallbackReason += "; raised to minimum charge"
	}
	quote.Amount = fallback.InexactFloat64()

	e.logger.Warn("pricing fallback applied",
		zap.String("serviceId", pc.Tariff.ID),
		zap.String("reason", quote.FallbackReason),
		zap.String("computed", running.String()),
		zap.Float64("amount", quote.Amount),
	)
	return quote, nil
}

func baseAmount(t models.ServiceTariff, durationMinutes int) (decimal.Decimal, error) {
	if durationMinutes <= 0 {
		return decimal.Zero, newInputError("duration", "must be positive, got %d", durationMinutes)
	}
	if math.IsNaN(t.BasePrice) || math.IsInf(t.BasePrice, 0) || t.BasePrice < 0 {
		return decimal.Zero, newInputError("basePrice", "must be a non-negative amount, got %v", t.BasePrice)
	}
	if t.Currency == "" {
		return decimal.Zero, newInputError("currency", "tariff %s has no currency", t.ID)
	}

	price := decimal.NewFromFloat(t.BasePrice)
	switch t.PriceModel {
	case models.PriceModelFixed, "":
		return price, nil
	case models.PriceModelHourly, models.PriceModelVariable:
		return price.Mul(decimal.NewFromInt(int64(durationMinutes))).Div(decimal.NewFromInt(60)), nil
	default:
		return decimal.Zero, newInputError("priceModel", "unknown price model %q", t.PriceModel)
	}
}

func addOnsAmount(t models.ServiceTariff, selected []string) (decimal.Decimal, error) {
	total := decimal.Zero
	seen := make(map[string]bool, len(selected))
	for _, name := range selected {
		if seen[name] {
			return decimal.Zero, newInputError("addOns", "add-on %q selected more than once", name)
		}
		seen[name] = true

		a, ok := t.FindAddOn(name)
		if !ok {
			return decimal.Zero, newInputError("addOns", "add-on %q is not offered by service %s", name, t.ID)
		}
		if math.IsNaN(a.Price) || math.IsInf(a.Price, 0) || a.Price < 0 {
			return decimal.Zero, newInputError("addOns", "add-on %q has an invalid price", name)
		}
		total = total.Add(decimal.NewFromFloat(a.Price))
	}
	return total, nil
}
