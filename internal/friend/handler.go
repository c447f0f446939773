package friend

import (
	"clurb/internal/errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(c *gin.Context) {
	userID, _ := c.Get("user_id")

	overview, err := h.service.List(c.Request.Context(), userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

type RequestBody struct {
	UserID uint64 `json:"user_id" binding:"required"`
}

func (h *Handler) Request(c *gin.Context) {
	var req RequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	friendship, err := h.service.Request(c.Request.Context(), userID.(uint64), req.UserID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, friendship)
}

type RespondBody struct {
	Action string `json:"action" binding:"required,oneof=accept decline"`
}

func (h *Handler) Respond(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	var req RespondBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	friendship, err := h.service.Respond(c.Request.Context(), id, userID.(uint64), req.Action == "accept")
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, friendship)
}
