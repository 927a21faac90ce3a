package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/JACT-22/cobranza-funeraria/internal/registrar"

	"github.com/gin-gonic/gin"
)

// PaymentRegistrar is the slice of the registrar the HTTP layer depends on.
type PaymentRegistrar interface {
	Register(ctx context.Context, in registrar.Input) (*registrar.Result, error)
}

type PaymentHandler struct {
	Registrar PaymentRegistrar
}

func NewPaymentHandler(r PaymentRegistrar) *PaymentHandler {
	return &PaymentHandler{Registrar: r}
}

type createPaymentRequest struct {
	ClientUUID    string  `json:"client_uuid" binding:"required,uuid"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	Notes         string  `json:"notes"`
	DeviceLocalTS string  `json:"device_local_ts" binding:"required"`
}

// Create registers a payment. The Idempotency-Key header is mandatory and is
// checked before anything touches the database, so a rejected request never
// consumes a folio.
func (h *PaymentHandler) Create(c *gin.Context) {
	idk := c.GetHeader("Idempotency-Key")
	if idk == "" {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", "Missing Idempotency-Key header")
		return
	}

	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid payment payload")
		return
	}

	deviceTS, err := time.Parse(time.RFC3339, req.DeviceLocalTS)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", "device_local_ts must be an ISO-8601 timestamp")
		return
	}

	res, err := h.Registrar.Register(c.Request.Context(), registrar.Input{
		ClientUUID:     req.ClientUUID,
		Amount:         req.Amount,
		Notes:          req.Notes,
		DeviceLocalTS:  deviceTS,
		IdempotencyKey: idk,
	})
	if err != nil {
		switch {
		case errors.Is(err, registrar.ErrValidation):
			errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid payment payload")
		case errors.Is(err, registrar.ErrClientNotFound):
			errorResponse(c, http.StatusNotFound, "NOT_FOUND", "Client not found")
		case errors.Is(err, registrar.ErrConflict):
			errorResponse(c, http.StatusConflict, "CONFLICT", "Duplicate request")
		case errors.Is(err, registrar.ErrTransient):
			errorResponse(c, http.StatusServiceUnavailable, "TRANSIENT", "Temporarily busy, retry with the same Idempotency-Key")
		default:
			slog.Error("Payment registration failed", "error", err, "idempotency_key", idk)
			errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected error")
		}
		return
	}

	status := http.StatusCreated
	if res.Outcome == registrar.OutcomeReplayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"payment_uuid":     res.PaymentUUID,
		"ticket_folio":     fmt.Sprintf("%s-%d", res.Series, res.Folio),
		"ticket_pdf_url":   fmt.Sprintf("/api/v1/tickets/folio/%s/%d/pdf", res.Series, res.Folio),
		"ticket_print_url": fmt.Sprintf("/api/v1/tickets/folio/%s/%d/print", res.Series, res.Folio),
	})
}
