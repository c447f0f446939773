package agent

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

func chatID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return 0, false
	}
	return id, true
}

func (h *Handler) ListChats(c *gin.Context) {
	userID, _ := c.Get("user_id")

	chats, err := h.service.ListChats(c.Request.Context(), userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": chats})
}

type TitleRequest struct {
	Title string `json:"title"`
}

func (h *Handler) CreateChat(c *gin.Context) {
	var req TitleRequest
	// an empty body creates an untitled chat
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errors.NewValidationError(err))
			return
		}
	}

	userID, _ := c.Get("user_id")

	chat, err := h.service.CreateChat(c.Request.Context(), userID.(uint64), req.Title)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, chat)
}

func (h *Handler) GetChat(c *gin.Context) {
	id, ok := chatID(c)
	if !ok {
		return
	}
	userID, _ := c.Get("user_id")

	view, err := h.service.GetChat(c.Request.Context(), id, userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) RenameChat(c *gin.Context) {
	id, ok := chatID(c)
	if !ok {
		return
	}

	var req TitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	chat, err := h.service.RenameChat(c.Request.Context(), id, userID.(uint64), req.Title)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, chat)
}

func (h *Handler) DeleteChat(c *gin.Context) {
	id, ok := chatID(c)
	if !ok {
		return
	}
	userID, _ := c.Get("user_id")

	if err := h.service.DeleteChat(c.Request.Context(), id, userID.(uint64)); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

type MessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (h *Handler) AddMessage(c *gin.Context) {
	id, ok := chatID(c)
	if !ok {
		return
	}

	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	msg, err := h.service.AddMessage(c.Request.Context(), id, userID.(uint64), req.Role, req.Content)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

type AskRequest struct {
	Content string `json:"content"`
}

func (h *Handler) Ask(c *gin.Context) {
	id, ok := chatID(c)
	if !ok {
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	answer, err := h.service.Ask(c.Request.Context(), id, userID.(uint64), req.Content)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, answer)
}

func (h *Handler) GenerateTitle(c *gin.Context) {
	id, ok := chatID(c)
	if !ok {
		return
	}
	userID, _ := c.Get("user_id")

	chat, err := h.service.GenerateTitle(c.Request.Context(), id, userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, chat)
}
