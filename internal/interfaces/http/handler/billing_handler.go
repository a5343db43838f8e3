package handler

import (
	"github.com/gin-gonic/gin"
	billingapp "github.com/soundfoundry/backend/internal/application/billing"
)

// BillingHandler handles Stripe checkout and billing portal endpoints
type BillingHandler struct {
	BaseHandler
	checkoutService *billingapp.CheckoutService
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(checkoutService *billingapp.CheckoutService) *BillingHandler {
	return &BillingHandler{
		checkoutService: checkoutService,
	}
}

// =====================
// Request/Response DTOs
// =====================

// CheckoutSessionRequest represents the request body for starting a checkout
type CheckoutSessionRequest struct {
	PriceID string `json:"price_id" binding:"required,max=255"`
}

// CatalogResponse represents the purchasable packs and subscriptions
type CatalogResponse struct {
	Packs         []billingapp.TokenPackDTO `json:"packs"`
	Subscriptions []billingapp.TokenPackDTO `json:"subscriptions"`
}

// ListPacks godoc
// @Summary      List token packs
// @Description  List the purchasable token packs and subscription plans
// @Tags         billing
// @Produce      json
// @Success      200 {object} dto.Response{data=CatalogResponse}
// @Router       /billing/packs [get]
func (h *BillingHandler) ListPacks(c *gin.Context) {
	h.Success(c, CatalogResponse{
		Packs:         h.checkoutService.ListPacks(),
		Subscriptions: h.checkoutService.ListSubscriptions(),
	})
}

// CreateCheckoutSession godoc
// @Summary      Start a checkout session
// @Description  Create a Stripe Checkout session for a token pack or subscription
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        request body CheckoutSessionRequest true "Price to purchase"
// @Success      200 {object} dto.Response{data=billingapp.CheckoutSessionDTO}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/checkout-session [post]
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req CheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	session, err := h.checkoutService.CreateCheckoutSession(c.Request.Context(), userID, req.PriceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, session)
}

// CreatePortalSession godoc
// @Summary      Open the billing portal
// @Description  Create a Stripe billing portal session for the authenticated user
// @Tags         billing
// @Produce      json
// @Success      200 {object} dto.Response{data=billingapp.CheckoutSessionDTO}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/portal-session [post]
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	session, err := h.checkoutService.CreatePortalSession(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, session)
}
