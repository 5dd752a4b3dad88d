package payment

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/refund"
	"go.uber.org/zap"

	"consultly/models"
)

type stripeIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
	List(params *stripe.RefundListParams) ([]*stripe.Refund, error)
}

// refundClient drains the Stripe list iterator so the processor only sees slices.
type refundClient struct {
	c *refund.Client
}

func (r refundClient) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	return r.c.New(params)
}

func (r refundClient) List(params *stripe.RefundListParams) ([]*stripe.Refund, error) {
	var out []*stripe.Refund
	it := r.c.List(params)
	for it.Next() {
		out = append(out, it.Refund())
	}
	return out, it.Err()
}

// StripeProcessor implements Processor on top of Stripe payment intents.
type StripeProcessor struct {
	intents stripeIntentAPI
	refunds stripeRefundAPI
	logger  *zap.Logger
}

// NewStripeProcessor builds a processor from a secret key. A nil backends value
// uses the default Stripe backends.
func NewStripeProcessor(apiKey string, backends *stripe.Backends, logger *zap.Logger) (*StripeProcessor, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("stripe: api key is required")
	}
	sc := client.New(apiKey, backends)
	return newStripeProcessor(sc.PaymentIntents, refundClient{c: sc.Refunds}, logger), nil
}

func newStripeProcessor(intents stripeIntentAPI, refunds stripeRefundAPI, logger *zap.Logger) *StripeProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeProcessor{intents: intents, refunds: refunds, logger: logger}
}

func (p *StripeProcessor) CreateIntent(ctx context.Context, req models.CreateIntentRequest) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}

	intent, err := p.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent: %w", classify(err))
	}
	p.logger.Info("Stripe payment intent created",
		zap.String("intentId", intent.ID),
		zap.Int64("amount", intent.Amount),
		zap.String("currency", string(intent.Currency)),
	)
	return toIntent(intent), nil
}

func (p *StripeProcessor) RetrieveIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := p.intents.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: retrieve payment intent %s: %w", intentID, classify(err))
	}
	return toIntent(intent), nil
}

func (p *StripeProcessor) Refund(ctx context.Context, req models.RefundRequest) (*models.Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.IntentID),
		Amount:        stripe.Int64(req.Amount),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if reason := refundReason(req.Reason); reason != "" {
		params.Reason = stripe.String(reason)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}

	rf, err := p.refunds.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: refund payment intent %s: %w", req.IntentID, classify(err))
	}
	if rf.Status == stripe.RefundStatusFailed || rf.Status == stripe.RefundStatusCanceled {
		return nil, fmt.Errorf("stripe: refund %s for %s ended %s", rf.ID, req.IntentID, rf.Status)
	}
	p.logger.Info("Stripe refund created",
		zap.String("intentId", req.IntentID),
		zap.String("refundId", rf.ID),
		zap.String("status", string(rf.Status)),
	)
	return &models.Refund{ID: rf.ID, Amount: rf.Amount, Status: string(rf.Status)}, nil
}

func (p *StripeProcessor) ListRefunds(ctx context.Context, intentID string) ([]models.Refund, error) {
	params := &stripe.RefundListParams{PaymentIntent: stripe.String(intentID)}
	params.Context = ctx
	refunds, err := p.refunds.List(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: list refunds for %s: %w", intentID, classify(err))
	}
	out := make([]models.Refund, 0, len(refunds))
	for _, r := range refunds {
		out = append(out, models.Refund{ID: r.ID, Amount: r.Amount, Status: string(r.Status)})
	}
	return out, nil
}

// classify tags Stripe failures with the package sentinels the booking flow branches on.
func classify(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return fmt.Errorf("%w: %s", ErrIntentNotFound, stripeErr.Msg)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrProcessorTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrProcessorTimeout, err)
	}
	return err
}

func toIntent(pi *stripe.PaymentIntent) *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     strings.ToUpper(string(pi.Currency)),
		Status:       models.IntentStatus(pi.Status),
		Metadata:     pi.Metadata,
	}
}

func refundReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case string(stripe.RefundReasonDuplicate):
		return string(stripe.RefundReasonDuplicate)
	case string(stripe.RefundReasonFraudulent):
		return string(stripe.RefundReasonFraudulent)
	case string(stripe.RefundReasonRequestedByCustomer):
		return string(stripe.RefundReasonRequestedByCustomer)
	}
	return ""
}
