package api

import (
	"net/http"

	"quote-service/internal/draft"

	"github.com/gin-gonic/gin"
)

func (h *Handler) getDraft(c *gin.Context) {
	d, err := h.orders.GetDraft(c.Request.Context(), actorFrom(c), c.Param("session"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) saveDraft(c *gin.Context) {
	var d draft.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	d.SessionID = c.Param("session")

	saved, err := h.orders.SaveDraft(c.Request.Context(), actorFrom(c), &d)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) clearDraft(c *gin.Context) {
	if err := h.orders.ClearDraft(c.Request.Context(), actorFrom(c), c.Param("session")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) addDraftItem(c *gin.Context) {
	var item draft.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	d, err := h.orders.AddDraftItem(c.Request.Context(), actorFrom(c), c.Param("session"), item)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) removeDraftItem(c *gin.Context) {
	d, err := h.orders.RemoveDraftItem(c.Request.Context(), actorFrom(c), c.Param("session"), c.Param("itemId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// submitDraft turns the draft into an order
func (h *Handler) submitDraft(c *gin.Context) {
	resp, err := h.orders.SubmitDraft(c.Request.Context(), actorFrom(c), c.Param("session"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
