package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	catalogRepo "consultly/database/repository/catalog"
	consultationRepo "consultly/database/repository/consultation"
	"consultly/models"
	"consultly/services/payment"
	"consultly/services/pricing"
)

const (
	defaultPaymentTimeout   = 15 * time.Second
	defaultRefundRetryDelay = 15 * time.Minute
	maxNotesLength          = 5000
)

// Deps wires the service to its collaborators. Notifier and Refunds may be nil.
type Deps struct {
	Consultations    consultationRepo.ConsultationRepository
	Catalog          catalogRepo.CatalogRepository
	Pricing          pricing.PricingEngine
	Processor        payment.Processor
	Notifier         Notifier
	Refunds          RefundScheduler
	Logger           *zap.Logger
	PaymentTimeout   time.Duration
	RefundRetryDelay time.Duration
	Now              func() time.Time
}

// Service implements ConsultationService.
type Service struct {
	repo             consultationRepo.ConsultationRepository
	catalog          catalogRepo.CatalogRepository
	pricing          pricing.PricingEngine
	processor        payment.Processor
	notifier         Notifier
	refunds          RefundScheduler
	logger           *zap.Logger
	paymentTimeout   time.Duration
	refundRetryDelay time.Duration
	now              func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		repo:             d.Consultations,
		catalog:          d.Catalog,
		pricing:          d.Pricing,
		processor:        d.Processor,
		notifier:         d.Notifier,
		refunds:          d.Refunds,
		logger:           d.Logger,
		paymentTimeout:   d.PaymentTimeout,
		refundRetryDelay: d.RefundRetryDelay,
		now:              d.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.paymentTimeout <= 0 {
		s.paymentTimeout = defaultPaymentTimeout
	}
	if s.refundRetryDelay <= 0 {
		s.refundRetryDelay = defaultRefundRetryDelay
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

type bookingPlan struct {
	tariff     *models.ServiceTariff
	consultant *models.Consultant
	client     *models.Client
	quote      models.PriceQuote
	now        time.Time
}

// prepare validates a booking request and prices it without touching any state.
func (s *Service) prepare(ctx context.Context, clientID string, req models.BookingRequest) (*bookingPlan, error) {
	now := s.now()
	if req.DurationMinutes <= 0 {
		return nil, newError(ErrValidation, "duration must be positive, got %d", req.DurationMinutes)
	}
	if req.ScheduledAt.IsZero() || !req.ScheduledAt.After(now) {
		return nil, newError(ErrValidation, "scheduled time must be in the future")
	}
	if strings.TrimSpace(req.Specialization) == "" {
		return nil, newError(ErrValidation, "specialization is required")
	}

	tariff, err := s.catalog.FindService(ctx, req.ServiceID)
	if err != nil {
		return nil, fromRepository(err, "service "+req.ServiceID)
	}
	if !tariff.IsActive {
		return nil, newError(ErrValidation, "service %s is not available for booking", tariff.ID)
	}
	if !tariff.SupportsSpecialization(req.Specialization) {
		return nil, newError(ErrValidation, "service %s does not cover specialization %q", tariff.ID, req.Specialization)
	}

	consultant, err := s.catalog.FindConsultant(ctx, req.ConsultantID)
	if err != nil {
		return nil, fromRepository(err, "consultant "+req.ConsultantID)
	}
	if !consultant.IsActive {
		return nil, newError(ErrValidation, "consultant %s is not accepting bookings", consultant.ID)
	}
	if !consultant.SupportsSpecialization(req.Specialization) {
		return nil, newError(ErrValidation, "consultant %s does not practise %q", consultant.ID, req.Specialization)
	}

	client, err := s.catalog.FindClient(ctx, clientID)
	if err != nil {
		return nil, fromRepository(err, "client "+clientID)
	}

	quote, err := s.pricing.ComputePrice(models.PricingContext{
		Tariff:            *tariff,
		DurationMinutes:   req.DurationMinutes,
		AddOns:            req.AddOns,
		ExperienceYears:   consultant.YearsOfExperience,
		ScheduledAt:       req.ScheduledAt,
		ConsultationCount: client.ConsultationCount,
		Now:               now,
	})
	if err != nil {
		var inputErr *pricing.InputError
		if errors.As(err, &inputErr) {
			return nil, wrapError(ErrValidation, err, "cannot price consultation")
		}
		return nil, fmt.Errorf("pricing consultation: %w", err)
	}

	return &bookingPlan{tariff: tariff, consultant: consultant, client: client, quote: quote, now: now}, nil
}

func (s *Service) Quote(ctx context.Context, actor models.Actor, req models.BookingRequest) (models.PriceQuote, error) {
	if actor.Role != models.RoleClient {
		return models.PriceQuote{}, newError(ErrForbidden, "only clients can request quotes")
	}
	plan, err := s.prepare(ctx, actor.ID, req)
	if err != nil {
		return models.PriceQuote{}, err
	}
	return plan.quote, nil
}

// Book creates a consultation in pending_payment with the quote embedded.
func (s *Service) Book(ctx context.Context, actor models.Actor, req models.BookingRequest) (*models.Consultation, error) {
	if actor.Role != models.RoleClient {
		return nil, newError(ErrForbidden, "only clients can book consultations")
	}
	plan, err := s.prepare(ctx, actor.ID, req)
	if err != nil {
		return nil, err
	}

	c := &models.Consultation{
		ID:                 uuid.New().String(),
		ClientID:           actor.ID,
		ConsultantID:       plan.consultant.ID,
		ServiceID:          plan.tariff.ID,
		Specialization:     req.Specialization,
		ScheduledAt:        req.ScheduledAt.UTC(),
		DurationMinutes:    req.DurationMinutes,
		AddOns:             append([]string(nil), req.AddOns...),
		BasePrice:          plan.quote.BaseAmount,
		FinalPrice:         plan.quote.Amount,
		Currency:           plan.quote.Currency,
		AppliedFactors:     plan.quote.AppliedFactors,
		FactorSequence:     plan.quote.FactorSequence,
		PricingFallback:    plan.quote.Fallback,
		CancellationPolicy: plan.tariff.Policy(),
		Status:             models.StatusPendingPayment,
		StatusHistory: []models.StatusEntry{{
			Status:    models.StatusPendingPayment,
			Timestamp: plan.now,
			Actor:     actor,
			Reason:    "booked",
		}},
		CreatedAt: plan.now,
		UpdatedAt: plan.now,
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("Consultation booked",
		zap.String("consultationId", c.ID),
		zap.String("clientId", c.ClientID),
		zap.String("consultantId", c.ConsultantID),
		zap.Float64("finalPrice", c.FinalPrice),
		zap.String("currency", c.Currency),
		zap.Bool("pricingFallback", c.PricingFallback),
	)
	s.notify(ctx, c, models.NotifyBookingCreated, consultantOf(c))
	return c, nil
}

func (s *Service) Get(ctx context.Context, actor models.Actor, id string) (*models.Consultation, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsParticipant(actor) && actor.Role != models.RoleAdmin {
		return nil, newError(ErrForbidden, "consultation %s is not visible to %s %s", id, actor.Role, actor.ID)
	}
	return c, nil
}

// List returns the actor's own consultations, newest first.
func (s *Service) List(ctx context.Context, actor models.Actor, limit int64) ([]models.Consultation, error) {
	if actor.Role != models.RoleClient && actor.Role != models.RoleConsultant {
		return nil, newError(ErrForbidden, "role %s has no consultations to list", actor.Role)
	}
	list, err := s.repo.ListByParticipant(ctx, actor, limit)
	if err != nil {
		return nil, fmt.Errorf("listing consultations: %w", err)
	}
	return list, nil
}

func (s *Service) Complete(ctx context.Context, actor models.Actor, id string) (*models.Consultation, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleConsultant || actor.ID != c.ConsultantID {
		return nil, newError(ErrForbidden, "only the assigned consultant can complete consultation %s", id)
	}
	if err := transition(c, transitionInput{to: models.StatusCompleted, actor: actor, at: s.now()}); err != nil {
		return nil, err
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	if err := s.catalog.IncrementConsultationCount(ctx, c.ClientID); err != nil {
		s.logger.Warn("Failed to update client consultation count",
			zap.String("clientId", c.ClientID), zap.Error(err))
	}
	s.notify(ctx, c, models.NotifyConsultationCompleted, clientOf(c))
	return c, nil
}

// Reschedule moves a scheduled consultation to a new time. The history gets a
// rescheduled marker followed by scheduled; the price is kept.
func (s *Service) Reschedule(ctx context.Context, actor models.Actor, id string, req models.RescheduleRequest) (*models.Consultation, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsParticipant(actor) {
		return nil, newError(ErrForbidden, "only the parties of consultation %s can reschedule it", id)
	}
	now := s.now()
	if !req.ScheduledAt.After(now) {
		return nil, newError(ErrValidation, "new scheduled time must be in the future")
	}
	if req.ScheduledAt.Equal(c.ScheduledAt) {
		return nil, newError(ErrValidation, "consultation %s is already scheduled at that time", id)
	}

	reason := fmt.Sprintf("moved from %s to %s", c.ScheduledAt.Format(time.RFC3339), req.ScheduledAt.UTC().Format(time.RFC3339))
	if r := strings.TrimSpace(req.Reason); r != "" {
		reason += ": " + r
	}
	if err := transition(c, transitionInput{to: models.StatusRescheduled, actor: actor, at: now, reason: reason}); err != nil {
		return nil, err
	}
	c.ScheduledAt = req.ScheduledAt.UTC()
	if err := transition(c, transitionInput{to: models.StatusScheduled, actor: actor, at: now}); err != nil {
		return nil, err
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	s.notify(ctx, c, models.NotifyRescheduled, counterpartOf(c, actor)...)
	return c, nil
}

// NoShow is reserved for administrators.
func (s *Service) NoShow(ctx context.Context, actor models.Actor, id, reason string) (*models.Consultation, error) {
	if actor.Role != models.RoleAdmin {
		return nil, newError(ErrForbidden, "only administrators can mark a no-show")
	}
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := transition(c, transitionInput{to: models.StatusNoShow, actor: actor, at: s.now(), reason: reason}); err != nil {
		return nil, err
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	s.notify(ctx, c, models.NotifyNoShow, clientOf(c), consultantOf(c))
	return c, nil
}

func (s *Service) UpdateNotes(ctx context.Context, actor models.Actor, id, notes string) (*models.Consultation, error) {
	if len(notes) > maxNotesLength {
		return nil, newError(ErrValidation, "notes exceed %d characters", maxNotesLength)
	}
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleConsultant || actor.ID != c.ConsultantID {
		return nil, newError(ErrForbidden, "only the assigned consultant can edit notes")
	}
	c.Notes = notes
	c.UpdatedAt = s.now()
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SubmitFeedback records the client's single rating once the consultation is completed.
func (s *Service) SubmitFeedback(ctx context.Context, actor models.Actor, id string, req models.FeedbackRequest) (*models.Consultation, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, newError(ErrValidation, "rating must be between 1 and 5")
	}
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleClient || actor.ID != c.ClientID {
		return nil, newError(ErrForbidden, "only the client can leave feedback")
	}
	if c.Status != models.StatusCompleted {
		return nil, newError(ErrInvalidTransition, "feedback is only accepted for completed consultations, %s is %s", id, c.Status)
	}
	if c.Feedback != nil {
		return nil, newError(ErrValidation, "feedback for consultation %s was already submitted", id)
	}

	now := s.now()
	c.Feedback = &models.Feedback{Rating: req.Rating, Comment: strings.TrimSpace(req.Comment), SubmittedAt: now}
	c.UpdatedAt = now
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) load(ctx context.Context, id string) (*models.Consultation, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fromRepository(err, "consultation "+id)
	}
	return c, nil
}

func (s *Service) save(ctx context.Context, c *models.Consultation) error {
	if err := s.repo.Save(ctx, c); err != nil {
		return fromRepository(err, "consultation "+c.ID)
	}
	return nil
}

func (s *Service) processorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.paymentTimeout)
}
