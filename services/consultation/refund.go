package consultation

import (
	"time"

	"github.com/shopspring/decimal"

	"consultly/models"
)

const (
	ReasonFullRefund    = "full_refund"
	ReasonPartialRefund = "partial_refund"
)

type refundTier struct {
	minLeadHours float64
	percent      int
}

// refundTables are ordered by descending lead time. Anything under the last
// tier is not refunded.
var refundTables = map[models.CancellationPolicy][]refundTier{
	models.CancellationFlexible: {{24, 100}, {12, 50}},
	models.CancellationModerate: {{48, 100}, {24, 50}},
	models.CancellationStrict:   {{168, 100}, {48, 50}},
}

// RefundPercent returns the share of the final price refunded for the given
// lead time under policy. Unknown policies use the moderate table.
func RefundPercent(policy models.CancellationPolicy, leadHours float64) int {
	tiers, ok := refundTables[policy]
	if !ok {
		tiers = refundTables[models.CancellationModerate]
	}
	for _, t := range tiers {
		if leadHours >= t.minLeadHours {
			return t.percent
		}
	}
	return 0
}

// ComputeRefund decides the refund owed when c is cancelled at cancelledAt.
// It returns nil when nothing is owed. The amount is taken from the final
// price and never exceeds it.
func ComputeRefund(c *models.Consultation, policy models.CancellationPolicy, cancelledAt time.Time) *models.RefundOutcome {
	lead := c.ScheduledAt.Sub(cancelledAt).Hours()
	percent := RefundPercent(policy, lead)
	if percent == 0 || c.FinalPrice <= 0 {
		return nil
	}

	final := decimal.NewFromFloat(c.FinalPrice)
	amount := final.Mul(decimal.NewFromInt(int64(percent))).Div(decimal.NewFromInt(100)).Round(2)
	if amount.GreaterThan(final) {
		amount = final
	}
	if !amount.IsPositive() {
		return nil
	}

	reason := ReasonPartialRefund
	if percent == 100 {
		reason = ReasonFullRefund
	}
	return &models.RefundOutcome{
		Amount:     amount.InexactFloat64(),
		Currency:   c.Currency,
		Percent:    percent,
		ReasonCode: reason,
		Status:     models.RefundPending,
	}
}
