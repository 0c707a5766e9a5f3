package agent

import (
	"context"
	"errors"
	"net/http"
	"time"

	"shopping-assistant/internal/models"
	"shopping-assistant/internal/service"
	"shopping-assistant/internal/store"
	"shopping-assistant/internal/util"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StockAdmin covers the stock operations that are not offered to the model
type StockAdmin interface {
	GetStock(ctx context.Context, warehouseID, productID string) (*models.InventoryRow, error)
	ReleaseItems(ctx context.Context, items []models.ReservedItem) error
}

// ReservationAuditor reads the audited history of a reservation
type ReservationAuditor interface {
	ReservationLog(ctx context.Context, reservationID string) ([]models.ReservationLogEntry, error)
}

// Handler exposes the agent over A2A JSON-RPC and the warehouse operations over REST
type Handler struct {
	card     *a2a.AgentCard
	executor a2asrv.AgentExecutor
	service  WarehouseService
	stock    StockAdmin
	audit    ReservationAuditor
}

func NewHandler(card *a2a.AgentCard, executor a2asrv.AgentExecutor, service WarehouseService, stock StockAdmin, audit ReservationAuditor) *Handler {
	return &Handler{
		card:     card,
		executor: executor,
		service:  service,
		stock:    stock,
		audit:    audit,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(util.PrometheusMiddleware())

	router.GET(a2asrv.WellKnownAgentCardPath, gin.WrapH(a2asrv.NewStaticAgentCardHandler(h.card)))
	router.POST("/", gin.WrapH(a2asrv.NewJSONRPCHandler(a2asrv.NewHandler(h.executor))))

	router.GET("/health", h.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/availability", h.checkAvailability)
		v1.POST("/reservations", h.reserveItems)
		v1.POST("/reservations/release", h.releaseItems)
		v1.GET("/reservations/:id/log", h.reservationLog)
		v1.GET("/inventory/:warehouse_id/:product_id", h.getStock)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"agent":  h.card.Name,
		"time":   time.Now().Unix(),
	})
}

type availabilityRequest struct {
	Items []models.ItemRequest `json:"items" binding:"required,min=1,dive"`
}

func (h *Handler) checkAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.service.CheckAvailability(c.Request.Context(), req.Items)
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"error":   "Failed to check availability",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) reserveItems(c *gin.Context) {
	var req models.ReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	result, err := h.service.ReserveItems(c.Request.Context(), &req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"error":   "Failed to reserve items",
			"details": err.Error(),
		})
		return
	}

	if !result.Success {
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type releaseRequest struct {
	Items []models.ReservedItem `json:"items" binding:"required,min=1"`
}

func (h *Handler) releaseItems(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.stock.ReleaseItems(c.Request.Context(), req.Items); err != nil {
		c.JSON(statusFor(err), gin.H{
			"error":   "Failed to release items",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "released",
		"released": req.Items,
	})
}

func (h *Handler) reservationLog(c *gin.Context) {
	reservationID := c.Param("id")

	entries, err := h.audit.ReservationLog(c.Request.Context(), reservationID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"error":   "Failed to load reservation log",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reservation_id": reservationID,
		"entries":        entries,
	})
}

func (h *Handler) getStock(c *gin.Context) {
	row, err := h.stock.GetStock(c.Request.Context(), c.Param("warehouse_id"), c.Param("product_id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"error":   "Failed to load stock",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, row)
}

func statusFor(err error) int {
	switch {
	case service.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrStockNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrReservationInProgress), errors.Is(err, store.ErrNothingReserved):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
