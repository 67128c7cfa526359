package handler

import (
	"github.com/Kdero/trustx/internal/adapter/http/dto"
	"github.com/Kdero/trustx/internal/core/ports"
	"github.com/Kdero/trustx/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler handles the privileged payment overrides.
type AdminHandler struct {
	paymentSvc ports.PaymentService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(paymentSvc ports.PaymentService) *AdminHandler {
	return &AdminHandler{paymentSvc: paymentSvc}
}

// Approve handles POST /api/v1/admin/payments/:payment_id/approve.
// Completes and settles the payment as if the expected amount had arrived.
func (h *AdminHandler) Approve(c *gin.Context) {
	payment, err := h.paymentSvc.ForceComplete(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPaymentResponse(payment))
}

// Reject handles POST /api/v1/admin/payments/:payment_id/reject.
func (h *AdminHandler) Reject(c *gin.Context) {
	payment, err := h.paymentSvc.ForceFail(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPaymentResponse(payment))
}
