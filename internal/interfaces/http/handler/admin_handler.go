package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	billingapp "github.com/soundfoundry/backend/internal/application/billing"
)

// AdminHandler handles operator-only ledger endpoints
type AdminHandler struct {
	BaseHandler
	ledgerService *billingapp.LedgerService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(ledgerService *billingapp.LedgerService) *AdminHandler {
	return &AdminHandler{
		ledgerService: ledgerService,
	}
}

// =====================
// Request/Response DTOs
// =====================

// ManualCreditRequest represents the request body for a manual adjustment
type ManualCreditRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required,max=500"`
}

// CreditTokens godoc
// @Summary      Record a manual token adjustment
// @Description  Credit or debit a user's balance as an operator action
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request body ManualCreditRequest true "Adjustment details"
// @Success      200 {object} dto.Response{data=LedgerEntryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/tokens/credit [post]
func (h *AdminHandler) CreditTokens(c *gin.Context) {
	operatorID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req ManualCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	entry, err := h.ledgerService.RecordManualCredit(c.Request.Context(), billingapp.ManualCreditInput{
		UserID:     userID,
		Amount:     req.Amount,
		Reason:     req.Reason,
		OperatorID: operatorID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ledgerEntryResponseFrom(entry))
}

// VerifyBalance godoc
// @Summary      Verify a user's balance
// @Description  Compare the balance row against the ledger sum for a user
// @Tags         admin
// @Produce      json
// @Param        user_id path string true "User ID"
// @Success      200 {object} dto.Response{data=billingapp.BalanceVerification}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/tokens/verify/{user_id} [get]
func (h *AdminHandler) VerifyBalance(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	verification, err := h.ledgerService.VerifyBalance(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, verification)
}
