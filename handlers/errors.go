package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"consultly/services/consultation"
	"consultly/utils"
)

var statusByCode = map[string]int{
	consultation.ErrValidation.Code:             http.StatusBadRequest,
	consultation.ErrNotFound.Code:               http.StatusNotFound,
	consultation.ErrInvalidTransition.Code:      http.StatusConflict,
	consultation.ErrConcurrentModification.Code: http.StatusConflict,
	consultation.ErrForbidden.Code:              http.StatusForbidden,
	consultation.ErrRefundFailed.Code:           http.StatusBadGateway,
	consultation.ErrProcessor.Code:              http.StatusBadGateway,
	consultation.ErrProcessorTimeout.Code:       http.StatusGatewayTimeout,
}

// respondError maps the outermost booking error onto an HTTP status. Anything
// else is an internal error and its text is not echoed to the caller.
func respondError(c *gin.Context, err error) {
	var be *consultation.BookingError
	if errors.As(err, &be) {
		status, ok := statusByCode[be.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		message := be.Message
		if message == "" {
			message = be.Code
		}
		utils.JSONError(c, status, be.Code, message, err.Error())
		return
	}
	utils.GetLogger().Error("Unexpected handler error", zap.String("path", c.FullPath()), zap.Error(err))
	utils.JSONError(c, http.StatusInternalServerError, "internal_error", "Internal Server Error", "")
}

func badRequest(c *gin.Context, err error) {
	utils.JSONError(c, http.StatusBadRequest, consultation.ErrValidation.Code, "Invalid request body", err.Error())
}
