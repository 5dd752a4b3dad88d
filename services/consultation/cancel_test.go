package consultation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consultly/models"
)

func TestCancelWellAheadRefundsInFull(t *testing.T) {
	env := newTestEnv(t)
	c := env.scheduled(t)

	res, err := env.svc.Cancel(context.Background(), clientActor, c.ID, "no longer needed")
	require.NoError(t, err)

	require.NotNil(t, res.Refund)
	assert.Equal(t, 126.00, res.Refund.Amount)
	assert.Equal(t, 100, res.Refund.Percent)
	assert.Equal(t, models.RefundSucceeded, res.Refund.Status)
	assert.Equal(t, "re_1", res.Refund.RefundID)
	assert.Equal(t, models.StatusRefunded, res.Consultation.Status)

	require.Len(t, env.processor.refunds, 1)
	req := env.processor.refunds[0]
	assert.Equal(t, int64(12600), req.Amount)
	assert.Equal(t, "pi_1", req.IntentID)
	assert.Equal(t, "refund-"+c.ID, req.IdempotencyKey)

	stored := env.reload(t, c.ID)
	require.Len(t, stored.StatusHistory, 4)
	cancelled, refunded := stored.StatusHistory[2], stored.StatusHistory[3]
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, clientActor, cancelled.Actor)
	assert.Equal(t, "no longer needed", cancelled.Reason)
	require.NotNil(t, cancelled.Refund)
	assert.Equal(t, models.RefundPending, cancelled.Refund.Status)
	assert.Equal(t, models.StatusRefunded, refunded.Status)
	require.NotNil(t, refunded.Refund)
	assert.Equal(t, models.RefundSucceeded, refunded.Refund.Status)
	assert.Equal(t, models.StatusRefunded, stored.Status)
}

func TestCancelThirtyHoursAheadRefundsHalf(t *testing.T) {
	env := newTestEnv(t)
	c := env.scheduled(t)
	env.now = c.ScheduledAt.Add(-30 * time.Hour)

	res, err := env.svc.Cancel(context.Background(), consultActor, c.ID, "")
	require.NoError(t, err)
	require.NotNil(t, res.Refund)
	assert.Equal(t, 63.00, res.Refund.Amount)
	assert.Equal(t, ReasonPartialRefund, res.Refund.ReasonCode)
	assert.Equal(t, models.StatusRefunded, env.reload(t, c.ID).Status)
}

func TestCancelTenHoursAheadHasNoRefund(t *testing.T) {
	env := newTestEnv(t)
	c := env.scheduled(t)
	env.now = c.ScheduledAt.Add(-10 * time.Hour)

	res, err := env.svc.Cancel(context.Background(), clientActor, c.ID, "")
	require.NoError(t, err)
	assert.Nil(t, res.Refund)
	assert.Empty(t, env.processor.refunds)

	stored := env.reload(t, c.ID)
	assert.Equal(t, models.StatusCancelled, stored.Status)
	assert.Len(t, stored.StatusHistory, 3)
	assert.Nil(t, stored.Refund)
}

func TestCancelRefundFailureStaysCancelledAndIsRetryable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.scheduled(t)
	env.processor.refundErr = errors.New("card_declined")

	res, err := env.svc.Cancel(ctx, clientActor, c.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, res.Consultation.Status)
	require.NotNil(t, res.Refund)
	assert.Equal(t, models.RefundFailed, res.Refund.Status)
	assert.Equal(t, 1, res.Refund.Attempts)
	assert.Contains(t, res.Refund.LastError, "card_declined")
	assert.Equal(t, []string{c.ID}, env.scheduler.queued)
	assert.Equal(t, []time.Duration{10 * time.Minute}, env.scheduler.delays)
	assert.Contains(t, env.notifier.kinds(), models.NotifyRefundFailed)

	stored := env.reload(t, c.ID)
	assert.Equal(t, models.StatusCancelled, stored.Status)
	require.NotNil(t, stored.Refund)
	assert.Equal(t, models.RefundFailed, stored.Refund.Status)

	_, err = env.svc.RetryRefund(ctx, clientActor, c.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.svc.RetryRefund(ctx, adminActor, c.ID)
	assert.ErrorIs(t, err, ErrRefundFailed)
	assert.Equal(t, 2, env.reload(t, c.ID).Refund.Attempts)

	env.processor.refundErr = nil
	settled, err := env.svc.RetryRefund(ctx, models.SystemActor, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, settled.Status)
	assert.Equal(t, 3, settled.Refund.Attempts)
	assert.Empty(t, settled.Refund.LastError)
	assert.Equal(t, models.SystemActor, settled.StatusHistory[len(settled.StatusHistory)-1].Actor)

	again, err := env.svc.RetryRefund(ctx, adminActor, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, again.Status)
	require.Len(t, env.processor.refunds, 3)
	assert.Equal(t, "refund-"+c.ID, env.processor.refunds[0].IdempotencyKey)
	assert.Equal(t, "refund-"+c.ID+"-2", env.processor.refunds[1].IdempotencyKey)
	assert.Equal(t, "refund-"+c.ID+"-3", env.processor.refunds[2].IdempotencyKey)
}

func TestRefundRetrySucceedsOnceProcessorRecovers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.scheduled(t)
	env.processor.refundErr = errors.New("processing_error")

	_, err := env.svc.Cancel(ctx, clientActor, c.ID, "")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = env.svc.RetryRefund(ctx, models.SystemActor, c.ID)
		require.ErrorIs(t, err, ErrRefundFailed)
	}

	env.processor.refundErr = nil
	settled, err := env.svc.RetryRefund(ctx, models.SystemActor, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, settled.Status)
	assert.Equal(t, 4, settled.Refund.Attempts)
	assert.Equal(t, "re_1", settled.Refund.RefundID)

	keys := make(map[string]bool)
	for _, r := range env.processor.refunds {
		assert.False(t, keys[r.IdempotencyKey], "key %s reused", r.IdempotencyKey)
		keys[r.IdempotencyKey] = true
	}
	assert.Len(t, keys, 4)
}

func TestRefundRetryAdoptsRefundWhoseReplyWasLost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.scheduled(t)
	env.processor.dropRefundReply = true

	res, err := env.svc.Cancel(ctx, clientActor, c.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, res.Consultation.Status)
	assert.Equal(t, models.RefundFailed, res.Refund.Status)
	assert.Equal(t, []string{c.ID}, env.scheduler.queued)

	env.processor.dropRefundReply = false
	settled, err := env.svc.RetryRefund(ctx, models.SystemActor, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, settled.Status)
	assert.Equal(t, "re_1", settled.Refund.RefundID)
	assert.Equal(t, 2, settled.Refund.Attempts)
	assert.Len(t, env.processor.refunds, 1)
	assert.Len(t, env.processor.issued, 1)
}

func TestRefundLookupFailureIsRecordedAsFailedAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.scheduled(t)
	env.processor.listErr = errors.New("api_connection_error")

	res, err := env.svc.Cancel(ctx, clientActor, c.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.RefundFailed, res.Refund.Status)
	assert.Contains(t, res.Refund.LastError, "api_connection_error")
	assert.Empty(t, env.processor.refunds)
	assert.Equal(t, []string{c.ID}, env.scheduler.queued)
}

func TestCancelReturnsCommittedStateWhenRefundedWriteLosesRace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.scheduled(t)

	racing := &racingRepo{ConsultationRepository: env.repo, skipSaves: 1}
	deps := env.deps
	deps.Consultations = racing
	svc := NewService(deps)
	racing.beforeSave = func() {
		stored := env.reload(t, c.ID)
		stored.Notes = "edited concurrently"
		require.NoError(t, env.repo.Save(ctx, stored))
	}

	res, err := svc.Cancel(ctx, clientActor, c.ID, "")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, models.StatusCancelled, res.Consultation.Status)
	assert.Equal(t, "edited concurrently", res.Consultation.Notes)
	require.NotNil(t, res.Refund)
	assert.Equal(t, models.RefundPending, res.Refund.Status)
	assert.Equal(t, []string{c.ID}, env.scheduler.queued)
	assert.Len(t, env.processor.refunds, 1)

	settled, err := env.svc.RetryRefund(ctx, models.SystemActor, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, settled.Status)
	assert.Equal(t, "re_1", settled.Refund.RefundID)
	assert.Len(t, env.processor.refunds, 1)
}

func TestRetryRefundWithoutOutstandingRefund(t *testing.T) {
	env := newTestEnv(t)
	c := env.scheduled(t)

	_, err := env.svc.RetryRefund(context.Background(), adminActor, c.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pending := env.book(t)

	_, err := env.svc.Cancel(ctx, clientActor, pending.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Len(t, env.reload(t, pending.ID).StatusHistory, 1)

	env.now = env.now.Add(time.Minute)
	c := env.scheduled(t)
	_, err = env.svc.Cancel(ctx, strangerActor, c.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.svc.Cancel(ctx, adminActor, c.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.svc.Cancel(ctx, clientActor, "missing", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelUsesServicePolicySnapshot(t *testing.T) {
	env := newTestEnv(t)
	svc, err := env.catalog.FindService(context.Background(), "svc-tax")
	require.NoError(t, err)
	svc.CancellationPolicy = models.CancellationStrict
	env.catalog.PutService(*svc)

	c := env.scheduled(t)
	assert.Equal(t, models.CancellationStrict, c.CancellationPolicy)
	// 100h is inside the strict half-refund band
	env.now = c.ScheduledAt.Add(-100 * time.Hour)

	res, err := env.svc.Cancel(context.Background(), clientActor, c.ID, "")
	require.NoError(t, err)
	require.NotNil(t, res.Refund)
	assert.Equal(t, 50, res.Refund.Percent)
}
