package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tidebank/ledger-core/internal/services"
	"github.com/tidebank/ledger-core/internal/views"
	"github.com/tidebank/ledger-core/pkg"
	"github.com/tidebank/ledger-core/pkg/models"
	"github.com/tidebank/ledger-core/pkg/utils"
	"go.uber.org/zap"
)

const (
	defaultHistoryPage = 1
	defaultHistorySize = 20
)

type TransactionHandler struct {
	logger  *zap.Logger
	service services.TransactionService
	limiter *pkg.DistributedLimiter // optional; nil disables rate limiting
}

func NewTransactionHandler(logger *zap.Logger, svc services.TransactionService, limiter *pkg.DistributedLimiter) *TransactionHandler {
	return &TransactionHandler{logger: logger, service: svc, limiter: limiter}
}

// RegisterRoutes registers transaction routes on the provided Gin group.
func (h *TransactionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/transactions/deposit", h.Deposit)
	r.POST("/transactions/withdraw", h.Withdraw)
	r.POST("/transactions/transfer", h.Transfer)
	r.GET("/accounts/:id/transactions", h.History)
}

func (h *TransactionHandler) Deposit(c *gin.Context) {
	traceID, performedBy, ok := h.submissionContext(c)
	if !ok {
		return
	}

	var req views.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}
	toAccountID, err := uuid.Parse(req.ToAccountID)
	if err != nil {
		badRequestBody(c, err)
		return
	}

	txn, err := h.service.Deposit(c.Request.Context(), traceID, toAccountID, req.Amount, req.Description, performedBy)
	h.respond(c, traceID, txn, err)
}

func (h *TransactionHandler) Withdraw(c *gin.Context) {
	traceID, performedBy, ok := h.submissionContext(c)
	if !ok {
		return
	}

	var req views.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}
	fromAccountID, err := uuid.Parse(req.FromAccountID)
	if err != nil {
		badRequestBody(c, err)
		return
	}

	txn, err := h.service.Withdraw(c.Request.Context(), traceID, fromAccountID, req.Amount, req.Description, performedBy)
	h.respond(c, traceID, txn, err)
}

func (h *TransactionHandler) Transfer(c *gin.Context) {
	traceID, performedBy, ok := h.submissionContext(c)
	if !ok {
		return
	}

	var req views.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestBody(c, err)
		return
	}
	fromAccountID, err := uuid.Parse(req.FromAccountID)
	if err != nil {
		badRequestBody(c, err)
		return
	}
	toAccountID, err := uuid.Parse(req.ToAccountID)
	if err != nil {
		badRequestBody(c, err)
		return
	}

	txn, err := h.service.Transfer(c.Request.Context(), traceID, fromAccountID, toAccountID, req.Amount, req.Description, performedBy)
	h.respond(c, traceID, txn, err)
}

func (h *TransactionHandler) History(c *gin.Context) {
	traceID, err := utils.GetTraceID(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, pkg.ErrorResponse{
			Code:    pkg.ErrServerCode.Code,
			Message: err.Error(),
		})
		return
	}

	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, pkg.ErrorResponse{
			Code:    pkg.ErrInvalidInputCode.Code,
			Message: "invalid account id",
		})
		return
	}

	page := queryInt(c, "page", defaultHistoryPage)
	size := queryInt(c, "limit", defaultHistorySize)

	txns, total, err := h.service.History(c.Request.Context(), traceID, accountID, page, size)
	if err != nil {
		resp := pkg.ToErrorResponse(h.logger, traceID, err)
		c.JSON(resp.Status, resp)
		return
	}

	out := make([]views.TransactionView, 0, len(txns))
	for _, txn := range txns {
		out = append(out, views.NewTransactionView(txn))
	}
	c.JSON(http.StatusOK, pkg.APIResponse{Data: views.HistoryResponse{
		Transactions: out,
		Page:         page,
		PageSize:     size,
		TotalCount:   total,
	}})
}

// submissionContext resolves the trace id and the trusted caller identity, and
// applies the global rate limit to money-moving endpoints.
func (h *TransactionHandler) submissionContext(c *gin.Context) (string, uuid.UUID, bool) {
	traceID, err := utils.GetTraceID(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, pkg.ErrorResponse{
			Code:    pkg.ErrServerCode.Code,
			Message: err.Error(),
		})
		return "", uuid.Nil, false
	}

	if h.limiter != nil && !h.limiter.Allow(c.Request.Context()) {
		c.JSON(http.StatusTooManyRequests, pkg.ErrorResponse{
			Code:    "APP_RATE_LIMITED",
			Message: pkg.ErrRateLimitExceeded.Error(),
		})
		return "", uuid.Nil, false
	}

	rawUserID, err := utils.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, pkg.ErrorResponse{
			Code:    pkg.ErrInvalidInputCode.Code,
			Message: "missing user identity",
		})
		return "", uuid.Nil, false
	}
	performedBy, err := uuid.Parse(rawUserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, pkg.ErrorResponse{
			Code:    pkg.ErrInvalidInputCode.Code,
			Message: "invalid user identity",
		})
		return "", uuid.Nil, false
	}
	return traceID, performedBy, true
}

func (h *TransactionHandler) respond(c *gin.Context, traceID string, txn models.Transaction, err error) {
	if err != nil {
		resp := pkg.ToErrorResponse(h.logger, traceID, err)
		c.JSON(resp.Status, resp)
		return
	}
	c.JSON(http.StatusCreated, pkg.APIResponse{Data: views.NewTransactionView(txn)})
}

func badRequestBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, pkg.ErrorResponse{
		Code:    pkg.ErrInvalidInputCode.Code,
		Message: "invalid request body",
		Details: err.Error(),
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
