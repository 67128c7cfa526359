package handler

import (
	"time"

	"github.com/Kdero/trustx/internal/adapter/http/dto"
	"github.com/Kdero/trustx/internal/core/domain"
	"github.com/Kdero/trustx/internal/core/ports"
	"github.com/Kdero/trustx/pkg/apperror"
	"github.com/Kdero/trustx/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentHandler handles the deposit payment endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Create handles POST /api/v1/payments.
func (h *PaymentHandler) Create(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	svcReq := ports.CreatePaymentRequest{
		Currency:    domain.Currency(req.Currency),
		Amount:      amount,
		Metadata:    req.Metadata,
		CallbackURL: req.CallbackURL,
		Expiry:      time.Duration(req.ExpiryMinutes) * time.Minute,
	}
	if req.OwnerID != nil {
		ownerID, err := uuid.Parse(*req.OwnerID)
		if err != nil {
			response.Error(c, apperror.Validation("owner_id must be a UUID"))
			return
		}
		svcReq.OwnerID = &ownerID
	}

	payment, err := h.paymentSvc.Create(c.Request.Context(), svcReq)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToPaymentResponse(payment))
}

// GetStatus handles GET /api/v1/payments/:payment_id. It runs a synchronous
// reconciliation check before answering, so a deposit confirmed between polls
// is visible immediately.
func (h *PaymentHandler) GetStatus(c *gin.Context) {
	payment, err := h.paymentSvc.GetStatus(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPaymentResponse(payment))
}

// GetDetail handles GET /api/v1/payments/:payment_id/transfers.
func (h *PaymentHandler) GetDetail(c *gin.Context) {
	payment, transfers, err := h.paymentSvc.GetDetail(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPaymentDetailResponse(payment, transfers))
}

// List handles GET /api/v1/payments?owner_id=...
func (h *PaymentHandler) List(c *gin.Context) {
	raw := c.Query("owner_id")
	if raw == "" {
		response.Error(c, apperror.Validation("owner_id query parameter is required"))
		return
	}
	ownerID, err := uuid.Parse(raw)
	if err != nil {
		response.Error(c, apperror.Validation("owner_id must be a UUID"))
		return
	}

	payments, err := h.paymentSvc.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		out = append(out, dto.ToPaymentResponse(&payments[i]))
	}
	response.OK(c, out)
}
