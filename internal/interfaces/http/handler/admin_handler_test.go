package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	billingapp "github.com/soundfoundry/backend/internal/application/billing"
	"github.com/soundfoundry/backend/internal/domain/ledger"
	"github.com/soundfoundry/backend/internal/infrastructure/auth"
	"github.com/soundfoundry/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupAdminRouter(handler *AdminHandler, jwtService *auth.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	group := r.Group("/api/v1/admin")
	group.Use(middleware.JWTAuthMiddleware(jwtService))
	group.Use(middleware.RequireAdmin())
	{
		group.POST("/tokens/credit", handler.CreditTokens)
		group.GET("/tokens/verify/:user_id", handler.VerifyBalance)
	}

	return r
}

func issueAdminToken(t *testing.T, jwtService *auth.JWTService, userID uuid.UUID) string {
	t.Helper()
	token, err := jwtService.GenerateAccessToken(auth.GenerateTokenInput{
		UserID: userID,
		Email:  "operator@example.com",
		Role:   "admin",
	})
	require.NoError(t, err)
	return token.Token
}

func TestAdminHandler_CreditTokens(t *testing.T) {
	store := new(MockLedgerStore)
	jwtService := auth.NewJWTService(testJWTConfig())
	handler := NewAdminHandler(billingapp.NewLedgerService(store, zap.NewNop()))
	router := setupAdminRouter(handler, jwtService)
	operatorID := uuid.New()
	targetID := uuid.New()

	store.On("Credit", mock.Anything, mock.MatchedBy(func(entry *ledger.Entry) bool {
		return entry.UserID == targetID &&
			entry.Delta == 50 &&
			entry.Source == ledger.EntrySourceManual &&
			entry.Metadata["operator_id"] == operatorID.String()
	})).Return(nil)

	w := doJSONRequest(t, router, http.MethodPost, "/api/v1/admin/tokens/credit", gin.H{
		"user_id": targetID.String(),
		"amount":  50,
		"reason":  "support goodwill",
	}, map[string]string{
		"Authorization": "Bearer " + issueAdminToken(t, jwtService, operatorID),
	})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(50), data["delta"])
	assert.Equal(t, "manual", data["source"])
	store.AssertExpectations(t)
}

func TestAdminHandler_CreditTokens_NegativeCorrection(t *testing.T) {
	store := new(MockLedgerStore)
	jwtService := auth.NewJWTService(testJWTConfig())
	handler := NewAdminHandler(billingapp.NewLedgerService(store, zap.NewNop()))
	router := setupAdminRouter(handler, jwtService)
	operatorID := uuid.New()
	targetID := uuid.New()

	store.On("Credit", mock.Anything, mock.MatchedBy(func(entry *ledger.Entry) bool {
		return entry.UserID == targetID && entry.Delta == -20 && entry.Source == ledger.EntrySourceManual
	})).Return(nil)

	w := doJSONRequest(t, router, http.MethodPost, "/api/v1/admin/tokens/credit", gin.H{
		"user_id": targetID.String(),
		"amount":  -20,
		"reason":  "duplicate grant correction",
	}, map[string]string{
		"Authorization": "Bearer " + issueAdminToken(t, jwtService, operatorID),
	})

	require.Equal(t, http.StatusOK, w.Code)
	store.AssertExpectations(t)
}

func TestAdminHandler_CreditTokens_NonAdminForbidden(t *testing.T) {
	store := new(MockLedgerStore)
	jwtService := auth.NewJWTService(testJWTConfig())
	handler := NewAdminHandler(billingapp.NewLedgerService(store, zap.NewNop()))
	router := setupAdminRouter(handler, jwtService)
	userID := uuid.New()

	w := doJSONRequest(t, router, http.MethodPost, "/api/v1/admin/tokens/credit", gin.H{
		"user_id": uuid.New().String(),
		"amount":  50,
		"reason":  "not allowed",
	}, map[string]string{
		"Authorization": "Bearer " + issueTestToken(t, jwtService, userID),
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	store.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything)
}

func TestAdminHandler_CreditTokens_InvalidBody(t *testing.T) {
	store := new(MockLedgerStore)
	jwtService := auth.NewJWTService(testJWTConfig())
	handler := NewAdminHandler(billingapp.NewLedgerService(store, zap.NewNop()))
	router := setupAdminRouter(handler, jwtService)
	operatorID := uuid.New()

	w := doJSONRequest(t, router, http.MethodPost, "/api/v1/admin/tokens/credit", gin.H{
		"user_id": "not-a-uuid",
		"amount":  50,
		"reason":  "bad id",
	}, map[string]string{
		"Authorization": "Bearer " + issueAdminToken(t, jwtService, operatorID),
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandler_VerifyBalance(t *testing.T) {
	store := new(MockLedgerStore)
	jwtService := auth.NewJWTService(testJWTConfig())
	handler := NewAdminHandler(billingapp.NewLedgerService(store, zap.NewNop()))
	router := setupAdminRouter(handler, jwtService)
	operatorID := uuid.New()
	targetID := uuid.New()

	store.On("GetBalance", mock.Anything, targetID).Return(int64(120), nil)
	store.On("SumDeltas", mock.Anything, targetID).Return(int64(120), nil)

	w := doJSONRequest(t, router, http.MethodGet, "/api/v1/admin/tokens/verify/"+targetID.String(), nil, map[string]string{
		"Authorization": "Bearer " + issueAdminToken(t, jwtService, operatorID),
	})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(120), data["balance"])
	assert.Equal(t, float64(120), data["ledger_sum"])
	assert.Equal(t, true, data["consistent"])
}

func TestAdminHandler_VerifyBalance_Drift(t *testing.T) {
	store := new(MockLedgerStore)
	jwtService := auth.NewJWTService(testJWTConfig())
	handler := NewAdminHandler(billingapp.NewLedgerService(store, zap.NewNop()))
	router := setupAdminRouter(handler, jwtService)
	operatorID := uuid.New()
	targetID := uuid.New()

	store.On("GetBalance", mock.Anything, targetID).Return(int64(120), nil)
	store.On("SumDeltas", mock.Anything, targetID).Return(int64(110), nil)

	w := doJSONRequest(t, router, http.MethodGet, "/api/v1/admin/tokens/verify/"+targetID.String(), nil, map[string]string{
		"Authorization": "Bearer " + issueAdminToken(t, jwtService, operatorID),
	})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	data := resp["data"].(map[string]any)
	assert.Equal(t, false, data["consistent"])
}

func TestAdminHandler_VerifyBalance_InvalidID(t *testing.T) {
	store := new(MockLedgerStore)
	jwtService := auth.NewJWTService(testJWTConfig())
	handler := NewAdminHandler(billingapp.NewLedgerService(store, zap.NewNop()))
	router := setupAdminRouter(handler, jwtService)
	operatorID := uuid.New()

	w := doJSONRequest(t, router, http.MethodGet, "/api/v1/admin/tokens/verify/not-a-uuid", nil, map[string]string{
		"Authorization": "Bearer " + issueAdminToken(t, jwtService, operatorID),
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
