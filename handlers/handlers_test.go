package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consultly/middleware"
	"consultly/models"
	"consultly/services/consultation"
	"consultly/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubService implements only what each test sets; anything else panics.
type stubService struct {
	consultation.ConsultationService

	book    func(models.Actor, models.BookingRequest) (*models.Consultation, error)
	get     func(models.Actor, string) (*models.Consultation, error)
	list    func(models.Actor, int64) ([]models.Consultation, error)
	cancel  func(models.Actor, string, string) (*models.CancellationResult, error)
	confirm func(string) (*models.ConfirmationResult, error)
}

func (s *stubService) Book(_ context.Context, a models.Actor, r models.BookingRequest) (*models.Consultation, error) {
	return s.book(a, r)
}

func (s *stubService) Get(_ context.Context, a models.Actor, id string) (*models.Consultation, error) {
	return s.get(a, id)
}

func (s *stubService) List(_ context.Context, a models.Actor, limit int64) ([]models.Consultation, error) {
	return s.list(a, limit)
}

func (s *stubService) Cancel(_ context.Context, a models.Actor, id, reason string) (*models.CancellationResult, error) {
	return s.cancel(a, id, reason)
}

func (s *stubService) ConfirmPayment(_ context.Context, intentID string) (*models.ConfirmationResult, error) {
	return s.confirm(intentID)
}

var client = models.Actor{ID: "cli-1", Role: models.RoleClient}

func routerFor(svc consultation.ConsultationService, actor *models.Actor) *gin.Engine {
	h := NewConsultationHandler(svc, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if actor != nil {
			middleware.SetActor(c, *actor)
		}
		c.Next()
	})
	r.POST("/api/consultations", h.BookHandler)
	r.GET("/api/consultations", h.ListHandler)
	r.GET("/api/consultations/:id", h.GetHandler)
	r.POST("/api/consultations/:id/cancel", h.CancelHandler)
	return r
}

func do(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBookHandlerCreatesConsultation(t *testing.T) {
	var got models.BookingRequest
	svc := &stubService{book: func(a models.Actor, r models.BookingRequest) (*models.Consultation, error) {
		got = r
		return &models.Consultation{ID: "c-1", ClientID: a.ID, Status: models.StatusPendingPayment, FinalPrice: 126}, nil
	}}

	body := []byte(`{"serviceId":"svc-tax","consultantId":"con-1","specialization":"tax","scheduledAt":"2026-10-14T10:00:00Z","duration":60,"addOns":["Recording"]}`)
	w := do(routerFor(svc, &client), http.MethodPost, "/api/consultations", body)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "svc-tax", got.ServiceID)
	assert.Equal(t, 60, got.DurationMinutes)
	assert.True(t, got.ScheduledAt.Equal(time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)))

	var out models.Consultation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "cli-1", out.ClientID)
}

func TestBookHandlerRejectsIncompleteBody(t *testing.T) {
	w := do(routerFor(&stubService{}, &client), http.MethodPost, "/api/consultations", []byte(`{"serviceId":"svc-tax"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlersRequireActor(t *testing.T) {
	w := do(routerFor(&stubService{}, nil), http.MethodGet, "/api/consultations/c-1", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestErrorKindsMapToStatus(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"validation": {fmt.Errorf("wrapped: %w", &consultation.BookingError{Code: "validation_error", Message: "bad"}), http.StatusBadRequest},
		"not found":  {consultation.ErrNotFound, http.StatusNotFound},
		"transition": {consultation.ErrInvalidTransition, http.StatusConflict},
		"conflict":   {consultation.ErrConcurrentModification, http.StatusConflict},
		"forbidden":  {consultation.ErrForbidden, http.StatusForbidden},
		"processor":  {consultation.ErrProcessor, http.StatusBadGateway},
		"timeout":    {consultation.ErrProcessorTimeout, http.StatusGatewayTimeout},
		"refund wraps timeout": {
			&consultation.BookingError{Code: "refund_failed", Err: &consultation.BookingError{Code: "processor_timeout"}},
			http.StatusBadGateway,
		},
		"unknown": {fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubService{get: func(models.Actor, string) (*models.Consultation, error) { return nil, tc.err }}
			w := do(routerFor(svc, &client), http.MethodGet, "/api/consultations/c-1", nil)
			assert.Equal(t, tc.want, w.Code)

			var resp utils.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Code)
		})
	}
}

func TestListHandlerPassesLimit(t *testing.T) {
	var gotLimit int64
	svc := &stubService{list: func(_ models.Actor, limit int64) ([]models.Consultation, error) {
		gotLimit = limit
		return []models.Consultation{{ID: "c-2"}, {ID: "c-1"}}, nil
	}}
	r := routerFor(svc, &client)

	w := do(r, http.MethodGet, "/api/consultations?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(5), gotLimit)

	w = do(r, http.MethodGet, "/api/consultations?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelHandlerAcceptsEmptyBody(t *testing.T) {
	var gotReason string
	svc := &stubService{cancel: func(_ models.Actor, id, reason string) (*models.CancellationResult, error) {
		gotReason = reason
		return &models.CancellationResult{Consultation: &models.Consultation{ID: id, Status: models.StatusCancelled}}, nil
	}}
	r := routerFor(svc, &client)

	w := do(r, http.MethodPost, "/api/consultations/c-1/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, gotReason)

	w = do(r, http.MethodPost, "/api/consultations/c-1/cancel", []byte(`{"reason":"travel"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "travel", gotReason)
}

const webhookSecret = "whsec_test"

type memoryClaimer struct {
	seen     map[string]bool
	released []string
}

func (m *memoryClaimer) Claim(_ context.Context, id string) (bool, error) {
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

func (m *memoryClaimer) Release(_ context.Context, id string) error {
	delete(m.seen, id)
	m.released = append(m.released, id)
	return nil
}

func signedWebhook(t *testing.T, r http.Handler, payload []byte, secret string) *httptest.ResponseRecorder {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t="+ts+",v1="+hex.EncodeToString(mac.Sum(nil)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func webhookEvent(id, eventType, intentID string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"api_version":"2020-08-27","data":{"object":{"id":%q,"object":"payment_intent","status":"succeeded"}}}`,
		id, eventType, intentID))
}

func webhookRouter(svc PaymentConfirmer, claimer EventClaimer) *gin.Engine {
	r := gin.New()
	r.POST("/api/webhooks/stripe", NewWebhookHandler(svc, claimer, webhookSecret, nil).StripeWebhookHandler)
	return r
}

func TestWebhookConfirmsPaymentOnce(t *testing.T) {
	var calls []string
	svc := &stubService{confirm: func(intentID string) (*models.ConfirmationResult, error) {
		calls = append(calls, intentID)
		return &models.ConfirmationResult{Outcome: models.ConfirmationConfirmed, ConsultationID: "c-1", Status: models.StatusScheduled}, nil
	}}
	r := webhookRouter(svc, &memoryClaimer{seen: map[string]bool{}})
	payload := webhookEvent("evt_1", "payment_intent.succeeded", "pi_1")

	w := signedWebhook(t, r, payload, webhookSecret)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = signedWebhook(t, r, payload, webhookSecret)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"pi_1"}, calls)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubService{}
	w := signedWebhook(t, webhookRouter(svc, nil), webhookEvent("evt_1", "payment_intent.succeeded", "pi_1"), "whsec_other")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	svc := &stubService{}
	w := signedWebhook(t, webhookRouter(svc, nil), webhookEvent("evt_2", "charge.refunded", "ch_1"), webhookSecret)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookUnknownIntentIsAcknowledged(t *testing.T) {
	svc := &stubService{confirm: func(string) (*models.ConfirmationResult, error) { return nil, consultation.ErrNotFound }}
	w := signedWebhook(t, webhookRouter(svc, nil), webhookEvent("evt_3", "payment_intent.succeeded", "pi_x"), webhookSecret)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookProcessorFailureReleasesEvent(t *testing.T) {
	claimer := &memoryClaimer{seen: map[string]bool{}}
	svc := &stubService{confirm: func(string) (*models.ConfirmationResult, error) { return nil, consultation.ErrProcessorTimeout }}

	w := signedWebhook(t, webhookRouter(svc, claimer), webhookEvent("evt_4", "payment_intent.succeeded", "pi_1"), webhookSecret)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, []string{"evt_4"}, claimer.released)
}

func TestWebhookMismatchedChargeIsAcknowledgedAndKept(t *testing.T) {
	claimer := &memoryClaimer{seen: map[string]bool{}}
	calls := 0
	svc := &stubService{confirm: func(string) (*models.ConfirmationResult, error) {
		calls++
		return nil, fmt.Errorf("confirming: %w", consultation.ErrValidation)
	}}
	router := webhookRouter(svc, claimer)
	body := webhookEvent("evt_5", "payment_intent.succeeded", "pi_1")

	w := signedWebhook(t, router, body, webhookSecret)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true,"rejected":true}`, w.Body.String())
	assert.Empty(t, claimer.released)

	w = signedWebhook(t, router, body, webhookSecret)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, calls)
}
