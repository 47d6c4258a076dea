package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tidebank/ledger-core/internal/services"
	"github.com/tidebank/ledger-core/internal/views"
	"github.com/tidebank/ledger-core/pkg"
	"github.com/tidebank/ledger-core/pkg/utils"
	"go.uber.org/zap"
)

type AccountHandler struct {
	logger  *zap.Logger
	service services.AccountService
}

func NewAccountHandler(logger *zap.Logger, svc services.AccountService) *AccountHandler {
	return &AccountHandler{logger: logger, service: svc}
}

// RegisterRoutes registers account routes on the provided Gin group.
func (h *AccountHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/accounts", h.CreateAccount)
	r.GET("/accounts/:id", h.GetAccount)
	r.GET("/accounts/:id/balance", h.GetBalance)
}

func (h *AccountHandler) CreateAccount(c *gin.Context) {
	traceID, err := utils.GetTraceID(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, pkg.ErrorResponse{
			Code:    pkg.ErrServerCode.Code,
			Message: err.Error(),
		})
		return
	}

	var req views.CreateAccountRequest
	if err = c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, pkg.ErrorResponse{
			Code:    pkg.ErrInvalidInputCode.Code,
			Message: "invalid request body",
			Details: err.Error(),
		})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, pkg.ErrorResponse{
			Code:    pkg.ErrInvalidInputCode.Code,
			Message: "invalid user id",
		})
		return
	}

	account, err := h.service.Create(c.Request.Context(), traceID, userID, pkg.AccountType(req.Type))
	if err != nil {
		resp := pkg.ToErrorResponse(h.logger, traceID, err)
		c.JSON(resp.Status, resp)
		return
	}

	c.JSON(http.StatusCreated, pkg.APIResponse{Data: views.NewAccountView(account)})
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	traceID, accountID, ok := h.pathAccountID(c)
	if !ok {
		return
	}

	account, err := h.service.GetById(c.Request.Context(), traceID, accountID)
	if err != nil {
		resp := pkg.ToErrorResponse(h.logger, traceID, err)
		c.JSON(resp.Status, resp)
		return
	}

	c.JSON(http.StatusOK, pkg.APIResponse{Data: views.NewAccountView(account)})
}

func (h *AccountHandler) GetBalance(c *gin.Context) {
	traceID, accountID, ok := h.pathAccountID(c)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(c.Request.Context(), traceID, accountID)
	if err != nil {
		resp := pkg.ToErrorResponse(h.logger, traceID, err)
		c.JSON(resp.Status, resp)
		return
	}

	c.JSON(http.StatusOK, pkg.APIResponse{Data: views.BalanceView{
		AccountID: accountID.String(),
		Balance:   balance,
	}})
}

func (h *AccountHandler) pathAccountID(c *gin.Context) (string, uuid.UUID, bool) {
	traceID, err := utils.GetTraceID(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, pkg.ErrorResponse{
			Code:    pkg.ErrServerCode.Code,
			Message: err.Error(),
		})
		return "", uuid.Nil, false
	}

	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, pkg.ErrorResponse{
			Code:    pkg.ErrInvalidInputCode.Code,
			Message: "invalid account id",
		})
		return "", uuid.Nil, false
	}
	return traceID, accountID, true
}
