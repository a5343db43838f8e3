package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	billingapp "github.com/soundfoundry/backend/internal/application/billing"
	"github.com/soundfoundry/backend/internal/domain/ledger"
	"github.com/soundfoundry/backend/internal/interfaces/http/dto"
)

// TokensHandler handles token balance and ledger endpoints
type TokensHandler struct {
	BaseHandler
	ledgerService *billingapp.LedgerService
}

// NewTokensHandler creates a new TokensHandler
func NewTokensHandler(ledgerService *billingapp.LedgerService) *TokensHandler {
	return &TokensHandler{
		ledgerService: ledgerService,
	}
}

// =====================
// Request/Response DTOs
// =====================

// LedgerEntryResponse represents a single ledger entry in responses
type LedgerEntryResponse struct {
	ID            uuid.UUID `json:"id"`
	Delta         int64     `json:"delta"`
	Reason        string    `json:"reason"`
	Source        string    `json:"source"`
	StripeEventID *string   `json:"stripe_event_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// RenderDebitRequest represents the request body for charging a render
type RenderDebitRequest struct {
	RenderID        string `json:"render_id" binding:"required,max=255"`
	DurationSeconds int64  `json:"duration_seconds" binding:"required,min=1"`
}

// RenderDebitResponse represents the result of charging a render
type RenderDebitResponse struct {
	RenderID string `json:"render_id"`
	Tokens   int64  `json:"tokens"`
}

// RenderRefundRequest represents the request body for refunding a failed render
type RenderRefundRequest struct {
	RenderID string `json:"render_id" binding:"required,max=255"`
	Tokens   int64  `json:"tokens" binding:"required,min=1"`
}

func ledgerEntryResponseFrom(entry *ledger.Entry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:            entry.ID,
		Delta:         entry.Delta,
		Reason:        entry.Reason,
		Source:        entry.Source.String(),
		StripeEventID: entry.StripeEventID,
		CreatedAt:     entry.CreatedAt,
	}
}

// GetBalance godoc
// @Summary      Get token balance
// @Description  Get the authenticated user's current token balance
// @Tags         tokens
// @Produce      json
// @Success      200 {object} dto.Response{data=BalanceData}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tokens/balance [get]
func (h *TokensHandler) GetBalance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	balance, err := h.ledgerService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, BalanceData{Balance: balance})
}

// GetLedger godoc
// @Summary      Get token ledger history
// @Description  Get the authenticated user's ledger entries, newest first
// @Tags         tokens
// @Produce      json
// @Param        page      query int    false "Page number"      default(1)
// @Param        page_size query int    false "Entries per page" default(20)
// @Param        source    query string false "Filter by entry source" Enums(checkout, invoice, refund, manual, consume)
// @Success      200 {object} dto.Response{data=[]LedgerEntryResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tokens/ledger [get]
func (h *TokensHandler) GetLedger(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 20
	}

	filter := ledger.EntryFilter{
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.Source != "" {
		source := ledger.EntrySource(req.Source)
		filter.Source = &source
	}

	entries, total, err := h.ledgerService.GetHistory(c.Request.Context(), userID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]LedgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, ledgerEntryResponseFrom(entry))
	}

	h.SuccessWithMeta(c, responses, total, req.Page, req.PageSize)
}

// DebitRender godoc
// @Summary      Charge tokens for a render
// @Description  Debit the render cost from the authenticated user's balance
// @Tags         tokens
// @Accept       json
// @Produce      json
// @Param        request body RenderDebitRequest true "Render details"
// @Success      200 {object} dto.Response{data=RenderDebitResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tokens/render/debit [post]
func (h *TokensHandler) DebitRender(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req RenderDebitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	tokens, err := h.ledgerService.DebitForRender(c.Request.Context(), userID, req.RenderID, req.DurationSeconds)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, RenderDebitResponse{
		RenderID: req.RenderID,
		Tokens:   tokens,
	})
}

// RefundRender godoc
// @Summary      Refund tokens for a failed render
// @Description  Credit back the tokens charged for a render that failed
// @Tags         tokens
// @Accept       json
// @Produce      json
// @Param        request body RenderRefundRequest true "Refund details"
// @Success      200 {object} dto.Response{data=LedgerEntryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tokens/render/refund [post]
func (h *TokensHandler) RefundRender(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req RenderRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	entry, err := h.ledgerService.RefundFailedRender(c.Request.Context(), userID, req.RenderID, req.Tokens)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ledgerEntryResponseFrom(entry))
}
