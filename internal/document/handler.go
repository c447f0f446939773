package document

import (
	"clurb/internal/errors"
	"clurb/internal/utils"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxUploadBytes caps a single uploaded file.
const MaxUploadBytes = 50 << 20

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes+(1<<20))

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.Error(errors.UnprocessableEntity("No file provided", err))
		return
	}
	if fileHeader.Size > MaxUploadBytes {
		c.Error(errors.UnprocessableEntity("File is too large", nil))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.Error(errors.UnprocessableEntity("Can't read uploaded file", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.Error(errors.UnprocessableEntity("Can't read uploaded file", err))
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType, _, _ = strings.Cut(http.DetectContentType(data), ";")
	}

	userID, _ := c.Get("user_id")

	doc, err := h.service.Upload(c.Request.Context(), UploadInput{
		OwnerID:     userID.(uint64),
		Title:       c.PostForm("title"),
		Filename:    fileHeader.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) ShowUserDocuments(c *gin.Context) {
	userID, _ := c.Get("user_id")

	page, pageSize := utils.GetPaginationParams(c)
	result, err := h.service.ListForUser(c.Request.Context(), userID.(uint64), page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ShowDocument(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")

	doc, err := h.service.GetDocumentByID(c.Request.Context(), docID, userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

type RenameRequest struct {
	Title string `json:"title" binding:"required,min=1,max=255"`
}

func (h *Handler) Rename(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	var input RenameRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	doc, err := h.service.RenameDocument(c.Request.Context(), docID, userID.(uint64), input.Title)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

type TotalPagesRequest struct {
	TotalPages int `json:"total_pages" binding:"required,min=1"`
}

func (h *Handler) SetTotalPages(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	var input TotalPagesRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	doc, err := h.service.SetTotalPages(c.Request.Context(), docID, userID.(uint64), input.TotalPages)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")

	if err := h.service.DeleteDocument(c.Request.Context(), docID, userID.(uint64)); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) PageText(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		c.Error(errors.UnprocessableEntity("page must be a number", err))
		return
	}

	userID, _ := c.Get("user_id")

	text, err := h.service.PageText(c.Request.Context(), docID, userID.(uint64), page)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"page": page, "text": text})
}

func (h *Handler) ListMembers(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")

	result, err := h.service.ListMembers(c.Request.Context(), docID, userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=editor viewer"`
}

func (h *Handler) ChangeRole(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	targetUserID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	requesterID, _ := c.Get("user_id")

	if err := h.service.ChangeRole(c.Request.Context(), docID, requesterID.(uint64), targetUserID, req.Role); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": targetUserID, "role": req.Role})
}

func (h *Handler) RemoveMember(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	targetUserID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	requesterID, _ := c.Get("user_id")

	if err := h.service.RemoveMember(c.Request.Context(), docID, requesterID.(uint64), targetUserID); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Leave(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")

	if err := h.service.Leave(c.Request.Context(), docID, userID.(uint64)); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

type InviteRequest struct {
	UserID  uint64  `json:"user_id" binding:"required"`
	Message *string `json:"message" binding:"omitempty,max=500"`
}

func (h *Handler) Invite(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	inviterID, _ := c.Get("user_id")

	invitation, err := h.service.Invite(c.Request.Context(), docID, inviterID.(uint64), req.UserID, req.Message)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, invitation)
}

func (h *Handler) ListInvitations(c *gin.Context) {
	userID, _ := c.Get("user_id")

	invitations, err := h.service.ListPendingInvitations(c.Request.Context(), userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invitations})
}

type RespondRequest struct {
	Action string `json:"action" binding:"required,oneof=accept decline"`
}

func (h *Handler) RespondInvitation(c *gin.Context) {
	invitationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	invitation, err := h.service.RespondInvitation(c.Request.Context(), invitationID, userID.(uint64), req.Action == "accept")
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, invitation)
}
