package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quote-service/internal/apperr"
	"quote-service/internal/audit"
	"quote-service/internal/draft"
	"quote-service/internal/models"
	"quote-service/internal/service"
	"quote-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// OrderAPI is the order service as seen by the HTTP layer
type OrderAPI interface {
	CreateOrder(ctx context.Context, actor models.Actor, req *service.CreateOrderRequest) (*service.OrderDetails, error)
	GetOrder(ctx context.Context, actor models.Actor, orderID int64) (*service.OrderDetails, error)
	ListOrders(ctx context.Context, actor models.Actor, req service.ListOrdersRequest) ([]models.Order, error)
	UpdateOrderTerms(ctx context.Context, actor models.Actor, orderID int64, patch *service.TermsPatch) (*service.OrderDetails, error)
	AddItem(ctx context.Context, actor models.Actor, orderID int64, req service.OrderItemRequest, expectedVersion *int) (*service.ItemResult, error)
	UpdateItem(ctx context.Context, actor models.Actor, orderID, itemID int64, patch *service.ItemPatch) (*service.ItemResult, error)
	RemoveItem(ctx context.Context, actor models.Actor, orderID, itemID int64, expectedVersion *int) (*service.ItemResult, error)
	ChangeStatus(ctx context.Context, actor models.Actor, orderID int64, to models.Status, expectedVersion *int) (*service.StatusChangeResult, error)
	GenerateDocument(ctx context.Context, actor models.Actor, orderID int64) (*service.DocumentResult, error)
	SendDocument(ctx context.Context, actor models.Actor, orderID int64) (*service.SendResult, error)
	ListAuditLog(ctx context.Context, actor models.Actor, orderID int64) ([]audit.FormattedEntry, error)
	CheckPermission(ctx context.Context, actor models.Actor, resource string, action models.Action) (bool, error)
	ListPermissions(ctx context.Context, actor models.Actor) (*service.PermissionTable, error)
	UpsertPermission(ctx context.Context, actor models.Actor, perm *models.ResourcePermission) error
	GetDraft(ctx context.Context, actor models.Actor, sessionID string) (*draft.Draft, error)
	SaveDraft(ctx context.Context, actor models.Actor, d *draft.Draft) (*draft.Draft, error)
	AddDraftItem(ctx context.Context, actor models.Actor, sessionID string, item draft.Item) (*draft.Draft, error)
	RemoveDraftItem(ctx context.Context, actor models.Actor, sessionID, itemID string) (*draft.Draft, error)
	ClearDraft(ctx context.Context, actor models.Actor, sessionID string) error
	SubmitDraft(ctx context.Context, actor models.Actor, sessionID string) (*service.OrderDetails, error)
}

// ReadinessCheck reports whether a dependency is reachable
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	orders OrderAPI
	checks map[string]ReadinessCheck
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(orders OrderAPI, checks map[string]ReadinessCheck) *Handler {
	return &Handler{
		orders: orders,
		checks: checks,
		logger: util.GetLogger(),
	}
}

// Identity headers set by the authenticating proxy
const (
	HeaderActorID    = "X-Actor-ID"
	HeaderActorEmail = "X-Actor-Email"
	HeaderActorName  = "X-Actor-Name"
	HeaderActorRole  = "X-Actor-Role"
)

const actorKey = "actor"

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", actorMiddleware())
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id", h.updateOrderTerms)
		v1.POST("/orders/:id/items", h.addItem)
		v1.PATCH("/orders/:id/items/:itemId", h.updateItem)
		v1.DELETE("/orders/:id/items/:itemId", h.removeItem)
		v1.POST("/orders/:id/status", h.changeStatus)
		v1.POST("/orders/:id/document", h.generateDocument)
		v1.POST("/orders/:id/document/send", h.sendDocument)
		v1.GET("/orders/:id/audit", h.listAuditLog)

		v1.GET("/permissions/check", h.checkPermission)
		v1.GET("/permissions", h.listPermissions)
		v1.PUT("/permissions", h.upsertPermission)

		v1.GET("/drafts/:session", h.getDraft)
		v1.PUT("/drafts/:session", h.saveDraft)
		v1.DELETE("/drafts/:session", h.clearDraft)
		v1.POST("/drafts/:session/items", h.addDraftItem)
		v1.DELETE("/drafts/:session/items/:itemId", h.removeDraftItem)
		v1.POST("/drafts/:session/submit", h.submitDraft)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports not ready while any dependency check fails
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// actorMiddleware trusts the identity forwarded by the authenticating proxy
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := models.Actor{
			ID:    strings.TrimSpace(c.GetHeader(HeaderActorID)),
			Email: strings.TrimSpace(c.GetHeader(HeaderActorEmail)),
			Name:  strings.TrimSpace(c.GetHeader(HeaderActorName)),
			Role:  models.Role(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole)))),
		}
		if actor.ID == "" || !actor.Role.Valid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or invalid actor identity",
			})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorFrom(c *gin.Context) models.Actor {
	actor, _ := c.MustGet(actorKey).(models.Actor)
	return actor
}

// respondError writes err with the status of its class
func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}

	body := gin.H{"error": http.StatusText(status)}
	if !errors.Is(err, apperr.ErrPersistence) {
		body["details"] = err.Error()
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid "+name, nil)
		return 0, false
	}
	return id, true
}

func queryVersion(c *gin.Context) (*int, bool) {
	raw := c.Query("expected_version")
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "Invalid expected_version", err)
		return nil, false
	}
	return &v, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
