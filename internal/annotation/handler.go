package annotation

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

type CreateRequest struct {
	PageNumber int     `json:"page_number" binding:"required,min=1"`
	Content    string  `json:"content" binding:"required,max=2000"`
	PositionX  float64 `json:"position_x"`
	PositionY  float64 `json:"position_y"`
	Color      string  `json:"color"`
}

func (h *Handler) Create(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	view, err := h.service.Create(c.Request.Context(), CreateInput{
		DocumentID: docID,
		AuthorID:   userID.(uint64),
		PageNumber: req.PageNumber,
		Content:    req.Content,
		Position:   Position{X: req.PositionX, Y: req.PositionY},
		Style:      req.Color,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (h *Handler) ListByPage(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		c.Error(errors.UnprocessableEntity("page must be a number", err))
		return
	}

	userID, _ := c.Get("user_id")

	views, err := h.service.ListByPage(c.Request.Context(), docID, userID.(uint64), page)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": views})
}

// MoveRequest carries either an absolute position or a drag gesture
// measured in screen pixels.
type MoveRequest struct {
	PositionX *float64     `json:"position_x"`
	PositionY *float64     `json:"position_y"`
	Drag      *DragRequest `json:"drag"`
}

type DragRequest struct {
	StartX float64 `json:"start_x"`
	StartY float64 `json:"start_y"`
	DeltaX float64 `json:"delta_x"`
	DeltaY float64 `json:"delta_y"`
	Width  float64 `json:"width" binding:"gt=0"`
	Height float64 `json:"height" binding:"gt=0"`
	Scale  float64 `json:"scale" binding:"gt=0"`
}

func (r MoveRequest) position() (Position, bool) {
	if r.Drag != nil {
		d := r.Drag
		return Drag(Position{X: d.StartX, Y: d.StartY}, d.DeltaX, d.DeltaY, d.Width, d.Height, d.Scale), true
	}
	if r.PositionX != nil && r.PositionY != nil {
		return Position{X: *r.PositionX, Y: *r.PositionY}, true
	}
	return Position{}, false
}

func (h *Handler) UpdatePosition(c *gin.Context) {
	noteID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}
	pos, ok := req.position()
	if !ok {
		c.Error(errors.UnprocessableEntity("position_x and position_y or drag is required", nil))
		return
	}

	userID, _ := c.Get("user_id")

	note, err := h.service.UpdatePosition(c.Request.Context(), noteID, userID.(uint64), pos)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, note)
}

func (h *Handler) Delete(c *gin.Context) {
	noteID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")

	if err := h.service.Delete(c.Request.Context(), noteID, userID.(uint64)); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
