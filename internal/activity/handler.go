package activity

import (
	"clurb/internal/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Recent(c *gin.Context) {
	userID, _ := c.Get("user_id")

	limit := utils.QueryInt(c, "limit", 20, 1, 100)

	events, err := h.service.Recent(c.Request.Context(), userID.(uint64), limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (h *Handler) Summary(c *gin.Context) {
	userID, _ := c.Get("user_id")

	summary, err := h.service.Summary(c.Request.Context(), userID.(uint64), daysParam(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *Handler) Daily(c *gin.Context) {
	userID, _ := c.Get("user_id")

	data, err := h.service.DailyPages(c.Request.Context(), userID.(uint64), daysParam(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": data})
}

func daysParam(c *gin.Context) int {
	return utils.QueryInt(c, "days", 7, 1, 365)
}
