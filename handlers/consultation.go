package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"consultly/middleware"
	"consultly/models"
	"consultly/services/consultation"
)

type ConsultationHandler struct {
	svc    consultation.ConsultationService
	logger *zap.Logger
}

func NewConsultationHandler(svc consultation.ConsultationService, logger *zap.Logger) *ConsultationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsultationHandler{svc: svc, logger: logger}
}

func (h *ConsultationHandler) actor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
	return actor, ok
}

// QuoteHandler prices a prospective booking without persisting anything.
func (h *ConsultationHandler) QuoteHandler(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	quote, err := h.svc.Quote(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *ConsultationHandler) BookHandler(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	booked, err := h.svc.Book(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("Consultation booked",
		zap.String("consultationId", booked.ID),
		zap.String("clientId", booked.ClientID),
		zap.Float64("finalPrice", booked.FinalPrice),
	)
	c.JSON(http.StatusCreated, booked)
}

func (h *ConsultationHandler) GetHandler(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	found, err := h.svc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

// ListHandler returns the caller's consultations, newest first. ?limit caps the page.
func (h *ConsultationHandler) ListHandler(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var limit int64
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			badRequest(c, strconv.ErrSyntax)
			return
		}
		limit = n
	}
	list, err := h.svc.List(c.Request.Context(), actor, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consultations": list, "count": len(list)})
}

func (h *ConsultationHandler) InitiatePaymentHandler(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	initiation, err := h.svc.InitiatePayment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, initiation)
}

// ConfirmPaymentHandler is the polling path used by the checkout page after
// the processor reports completion on the client side.
func (h *ConsultationHandler) ConfirmPaymentHandler(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}
	result, err := h.svc.ConfirmPayment(c.Request.Context(), c.Param("intentId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ConsultationHandler) CompleteHandler(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	done, err := h.svc.Complete(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, done)
}

func (h *ConsultationHandler) CancelHandler(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.ReasonRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.svc.Cancel(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ConsultationHandler) RescheduleHandler(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	moved, err := h.svc.Reschedule(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, moved)
}

func (h *ConsultationHandler) NoShowHandler(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.ReasonRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	marked, err := h.svc.NoShow(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, marked)
}

func (h *ConsultationHandler) RetryRefundHandler(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	retried, err := h.svc.RetryRefund(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, retried)
}

func (h *ConsultationHandler) UpdateNotesHandler(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.NotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := h.svc.UpdateNotes(c.Request.Context(), actor, c.Param("id"), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *ConsultationHandler) FeedbackHandler(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rated, err := h.svc.SubmitFeedback(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rated)
}

// bindOptionalJSON binds a body when one was sent. Cancel and no-show accept
// an empty body.
func bindOptionalJSON(c *gin.Context, v any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(v)
}
