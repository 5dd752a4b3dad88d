package consultation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	catalogRepo "consultly/database/repository/catalog"
	consultationRepo "consultly/database/repository/consultation"
	"consultly/models"
	"consultly/services/payment"
	"consultly/services/pricing"
)

var (
	bookedAt      = time.Date(2026, time.October, 7, 10, 0, 0, 0, time.UTC)
	sessionAt     = time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC) // Wednesday
	clientActor   = models.Actor{ID: "cli-1", Role: models.RoleClient}
	consultActor  = models.Actor{ID: "con-1", Role: models.RoleConsultant}
	adminActor    = models.Actor{ID: "ops-1", Role: models.RoleAdmin}
	strangerActor = models.Actor{ID: "cli-9", Role: models.RoleClient}
)

type fakeProcessor struct {
	mu            sync.Mutex
	intents       map[string]*models.PaymentIntent
	refunds       []models.RefundRequest
	createCalls   int
	retrieveCalls int
	refundErr     error
	retrieveErr   error
	listErr       error
	blockRetrieve bool
	// dropRefundReply issues the refund but answers with a timeout, as when
	// the response is lost on the way back.
	dropRefundReply bool
	issued          []models.Refund
	replies         map[string]refundReply
}

type refundReply struct {
	refund *models.Refund
	err    error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		intents: make(map[string]*models.PaymentIntent),
		replies: make(map[string]refundReply),
	}
}

func (f *fakeProcessor) CreateIntent(_ context.Context, req models.CreateIntentRequest) (*models.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	id := fmt.Sprintf("pi_%d", f.createCalls)
	intent := &models.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Amount:       req.Amount,
		Currency:     req.Currency,
		Status:       "requires_payment_method",
		Metadata:     req.Metadata,
	}
	f.intents[id] = intent
	cp := *intent
	return &cp, nil
}

func (f *fakeProcessor) RetrieveIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	f.mu.Lock()
	f.retrieveCalls++
	block, retrieveErr := f.blockRetrieve, f.retrieveErr
	intent, ok := f.intents[id]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if retrieveErr != nil {
		return nil, retrieveErr
	}
	if !ok {
		return nil, payment.ErrIntentNotFound
	}
	cp := *intent
	return &cp, nil
}

// Refund replays the first reply stored under an idempotency key, errors
// included, the way Stripe does.
func (f *fakeProcessor) Refund(_ context.Context, req models.RefundRequest) (*models.Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, req)
	if reply, ok := f.replies[req.IdempotencyKey]; ok {
		return reply.refund, reply.err
	}
	if f.refundErr != nil {
		f.replies[req.IdempotencyKey] = refundReply{err: f.refundErr}
		return nil, f.refundErr
	}
	refund := models.Refund{ID: fmt.Sprintf("re_%d", len(f.issued)+1), Amount: req.Amount, Status: "succeeded"}
	f.issued = append(f.issued, refund)
	f.replies[req.IdempotencyKey] = refundReply{refund: &refund}
	if f.dropRefundReply {
		return nil, fmt.Errorf("refund %s: %w", req.IntentID, payment.ErrProcessorTimeout)
	}
	cp := refund
	return &cp, nil
}

func (f *fakeProcessor) ListRefunds(_ context.Context, _ string) ([]models.Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Refund(nil), f.issued...), nil
}

func (f *fakeProcessor) setStatus(id string, status models.IntentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[id].Status = status
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.NotificationPayload
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, n models.NotificationPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) kinds() []models.NotificationKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.NotificationKind, len(f.sent))
	for i, n := range f.sent {
		out[i] = n.Kind
	}
	return out
}

type fakeScheduler struct {
	mu     sync.Mutex
	queued []string
	delays []time.Duration
}

func (f *fakeScheduler) ScheduleRefundRetry(_ context.Context, id string, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, id)
	f.delays = append(f.delays, delay)
	return nil
}

// racingRepo runs beforeSave once, just ahead of a Save, to simulate a
// concurrent writer winning the race. The first skipSaves saves pass through.
type racingRepo struct {
	consultationRepo.ConsultationRepository
	beforeSave func()
	skipSaves  int
}

func (r *racingRepo) Save(ctx context.Context, c *models.Consultation) error {
	if r.skipSaves > 0 {
		r.skipSaves--
		return r.ConsultationRepository.Save(ctx, c)
	}
	if f := r.beforeSave; f != nil {
		r.beforeSave = nil
		f()
	}
	return r.ConsultationRepository.Save(ctx, c)
}

type testEnv struct {
	svc       *Service
	deps      Deps
	repo      *consultationRepo.MemoryConsultationRepo
	catalog   *catalogRepo.MemoryCatalogRepo
	processor *fakeProcessor
	notifier  *fakeNotifier
	scheduler *fakeScheduler
	now       time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:      consultationRepo.NewMemoryConsultationRepo(),
		catalog:   catalogRepo.NewMemoryCatalogRepo(),
		processor: newFakeProcessor(),
		notifier:  &fakeNotifier{},
		scheduler: &fakeScheduler{},
		now:       bookedAt,
	}
	env.catalog.PutService(models.ServiceTariff{
		ID:              "svc-tax",
		Name:            "Tax planning",
		BasePrice:       100,
		Currency:        "USD",
		PriceModel:      models.PriceModelHourly,
		Specializations: []string{"tax", "payroll"},
		AddOns:          []models.AddOn{{Name: "Recording", Price: 15}},
		IsActive:        true,
	})
	env.catalog.PutConsultant(models.Consultant{
		ID:                "con-1",
		Specializations:   []string{"tax", "audit"},
		YearsOfExperience: 5,
		IsActive:          true,
	})
	env.catalog.PutClient(models.Client{ID: "cli-1"})

	clock := func() time.Time { return env.now }
	env.deps = Deps{
		Consultations:    env.repo,
		Catalog:          env.catalog,
		Pricing:          pricing.NewEngine(nil, pricing.WithClock(clock)),
		Processor:        env.processor,
		Notifier:         env.notifier,
		Refunds:          env.scheduler,
		PaymentTimeout:   time.Second,
		RefundRetryDelay: 10 * time.Minute,
		Now:              clock,
	}
	env.svc = NewService(env.deps)
	return env
}

func taxBooking() models.BookingRequest {
	return models.BookingRequest{
		ServiceID:       "svc-tax",
		ConsultantID:    "con-1",
		Specialization:  "tax",
		ScheduledAt:     sessionAt,
		DurationMinutes: 60,
	}
}

func (env *testEnv) book(t *testing.T) *models.Consultation {
	t.Helper()
	c, err := env.svc.Book(context.Background(), clientActor, taxBooking())
	require.NoError(t, err)
	return c
}

// scheduled books, pays and confirms a consultation.
func (env *testEnv) scheduled(t *testing.T) *models.Consultation {
	t.Helper()
	ctx := context.Background()
	c := env.book(t)
	started, err := env.svc.InitiatePayment(ctx, clientActor, c.ID)
	require.NoError(t, err)
	env.processor.setStatus(started.IntentID, models.IntentSucceeded)
	res, err := env.svc.ConfirmPayment(ctx, started.IntentID)
	require.NoError(t, err)
	require.Equal(t, models.ConfirmationConfirmed, res.Outcome)

	c, err = env.repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	return c
}

func (env *testEnv) reload(t *testing.T, id string) *models.Consultation {
	t.Helper()
	c, err := env.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return c
}
