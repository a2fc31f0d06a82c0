package api

import (
	"net/http"
	"strconv"

	"quote-service/internal/models"
	"quote-service/internal/service"

	"github.com/gin-gonic/gin"
)

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.orders.CreateOrder(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// listOrders lists the orders visible to the caller
func (h *Handler) listOrders(c *gin.Context) {
	req := service.ListOrdersRequest{Status: models.Status(c.Query("status"))}

	var err error
	if raw := c.Query("limit"); raw != "" {
		if req.Limit, err = strconv.Atoi(raw); err != nil || req.Limit < 0 {
			badRequest(c, "Invalid limit", err)
			return
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if req.Offset, err = strconv.Atoi(raw); err != nil || req.Offset < 0 {
			badRequest(c, "Invalid offset", err)
			return
		}
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := h.orders.GetOrder(c.Request.Context(), actorFrom(c), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) updateOrderTerms(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var patch service.TermsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	resp, err := h.orders.UpdateOrderTerms(c.Request.Context(), actorFrom(c), orderID, &patch)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type addItemRequest struct {
	service.OrderItemRequest
	ExpectedVersion *int `json:"expected_version,omitempty"`
}

func (h *Handler) addItem(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	resp, err := h.orders.AddItem(c.Request.Context(), actorFrom(c), orderID, req.OrderItemRequest, req.ExpectedVersion)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) updateItem(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return
	}

	var patch service.ItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	resp, err := h.orders.UpdateItem(c.Request.Context(), actorFrom(c), orderID, itemID, &patch)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) removeItem(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return
	}
	version, ok := queryVersion(c)
	if !ok {
		return
	}

	resp, err := h.orders.RemoveItem(c.Request.Context(), actorFrom(c), orderID, itemID, version)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type changeStatusRequest struct {
	Status          models.Status `json:"status" binding:"required"`
	ExpectedVersion *int          `json:"expected_version,omitempty"`
}

// changeStatus commits the transition; the customer notification completes in the background
func (h *Handler) changeStatus(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	resp, err := h.orders.ChangeStatus(c.Request.Context(), actorFrom(c), orderID, req.Status, req.ExpectedVersion)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) generateDocument(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := h.orders.GenerateDocument(c.Request.Context(), actorFrom(c), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) sendDocument(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := h.orders.SendDocument(c.Request.Context(), actorFrom(c), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listAuditLog(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	entries, err := h.orders.ListAuditLog(c.Request.Context(), actorFrom(c), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// checkPermission answers for the caller's own role
func (h *Handler) checkPermission(c *gin.Context) {
	resource := c.Query("resource")
	action := models.Action(c.DefaultQuery("action", string(models.ActionView)))

	allowed, err := h.orders.CheckPermission(c.Request.Context(), actorFrom(c), resource, action)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resource": resource,
		"action":   action,
		"allowed":  allowed,
	})
}

func (h *Handler) listPermissions(c *gin.Context) {
	table, err := h.orders.ListPermissions(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, table)
}

func (h *Handler) upsertPermission(c *gin.Context) {
	var perm models.ResourcePermission
	if err := c.ShouldBindJSON(&perm); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	if err := h.orders.UpsertPermission(c.Request.Context(), actorFrom(c), &perm); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, perm)
}
