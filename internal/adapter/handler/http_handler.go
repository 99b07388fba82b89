package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/wallet/internal/core/domain"
	"github.com/rl1809/wallet/internal/core/service"
)

type HTTPHandler struct {
	walletService *service.WalletService
	logger        *slog.Logger
}

type OperationHTTPRequest struct {
	WalletID string `json:"walletId"`
	// ValletID is the field name earlier clients send.
	ValletID      string          `json:"valletId"`
	OperationType string          `json:"operationType" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"positive_decimal"`
}

// walletID accepts either spelling and any UUID form uuid.Parse understands.
func (r OperationHTTPRequest) walletID() (uuid.UUID, error) {
	raw := r.WalletID
	if raw == "" {
		raw = r.ValletID
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, domain.ErrInvalidWalletID
	}
	return id, nil
}

type WalletHTTPResponse struct {
	ID      uuid.UUID `json:"id"`
	Balance string    `json:"balance"`
}

type ErrorHTTPResponse struct {
	Error string `json:"error"`
}

var registerValidators sync.Once

func NewHTTPHandler(walletService *service.WalletService, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}

	registerValidators.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		// Decimals are validated through their exact string form. Out of range
		// values map to "" so their digits are never expanded.
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			d, ok := field.Interface().(decimal.Decimal)
			if !ok || domain.ValidateAmount(d) != nil {
				return ""
			}
			return d.String()
		}, decimal.Decimal{})
		_ = v.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
			d, err := decimal.NewFromString(fl.Field().String())
			return err == nil && domain.ValidateAmount(d) == nil
		})
	})

	return &HTTPHandler{walletService: walletService, logger: logger}
}

// Router wires the wallet API onto a new gin engine.
func (h *HTTPHandler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	r.GET("/health", h.HealthCheck)
	r.GET("/api/ping", h.Ping)

	wallets := r.Group("/api/v1/wallet")
	wallets.POST("/create", h.CreateWallet)
	wallets.POST("", h.ApplyOperation)
	wallets.GET("", h.ListWallets)
	wallets.GET("/:id", h.GetBalance)

	return r
}

func (h *HTTPHandler) CreateWallet(c *gin.Context) {
	acc, err := h.walletService.CreateWallet(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toWalletHTTPResponse(acc))
}

func (h *HTTPHandler) ApplyOperation(c *gin.Context) {
	var req OperationHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorHTTPResponse{Error: bindingErrorMessage(err)})
		return
	}

	id, err := req.walletID()
	if err != nil {
		h.writeError(c, err)
		return
	}
	kind, err := domain.ParseOperationKind(req.OperationType)
	if err != nil {
		h.writeError(c, err)
		return
	}

	acc, err := h.walletService.ApplyOperation(c.Request.Context(), domain.Operation{
		AccountID: id,
		Kind:      kind,
		Amount:    req.Amount,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toWalletHTTPResponse(acc))
}

func (h *HTTPHandler) GetBalance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.writeError(c, domain.ErrInvalidWalletID)
		return
	}

	acc, err := h.walletService.GetBalance(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toWalletHTTPResponse(acc))
}

func (h *HTTPHandler) ListWallets(c *gin.Context) {
	accounts, err := h.walletService.ListWallets(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]WalletHTTPResponse, 0, len(accounts))
	for i := range accounts {
		resp = append(resp, toWalletHTTPResponse(&accounts[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Server is running"})
}

func toWalletHTTPResponse(acc *domain.Account) WalletHTTPResponse {
	return WalletHTTPResponse{
		ID:      acc.ID,
		Balance: acc.Balance.StringFixed(domain.Scale),
	}
}

func httpStatusForErr(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidOperation),
		errors.Is(err, domain.ErrInvalidWalletID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrWalletNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBalanceLimitExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	status := httpStatusForErr(err)

	message := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		h.logger.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		message = "internal error"
	}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}

	c.JSON(status, ErrorHTTPResponse{Error: message})
}

func bindingErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fe.Field() + ": field is required"
		case "positive_decimal":
			return fe.Field() + ": " + domain.ErrInvalidAmount.Error()
		default:
			return fe.Field() + ": invalid value"
		}
	}
	return "invalid JSON body"
}

func (h *HTTPHandler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		h.logger.DebugContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
