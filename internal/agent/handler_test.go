package agent

import (
	"bytes"
	"clurb/internal/domain"
	"clurb/internal/errors"
	"clurb/internal/middleware"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ListChats(ctx context.Context, userID uint64) ([]domain.AgentChat, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AgentChat), args.Error(1)
}

func (m *MockService) CreateChat(ctx context.Context, userID uint64, title string) (*domain.AgentChat, error) {
	args := m.Called(ctx, userID, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AgentChat), args.Error(1)
}

func (m *MockService) GetChat(ctx context.Context, id, userID uint64) (*ChatView, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ChatView), args.Error(1)
}

func (m *MockService) RenameChat(ctx context.Context, id, userID uint64, title string) (*domain.AgentChat, error) {
	args := m.Called(ctx, id, userID, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AgentChat), args.Error(1)
}

func (m *MockService) DeleteChat(ctx context.Context, id, userID uint64) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockService) AddMessage(ctx context.Context, id, userID uint64, role, content string) (*domain.AgentMessage, error) {
	args := m.Called(ctx, id, userID, role, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AgentMessage), args.Error(1)
}

func (m *MockService) Ask(ctx context.Context, id, userID uint64, question string) (*domain.AgentMessage, error) {
	args := m.Called(ctx, id, userID, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AgentMessage), args.Error(1)
}

func (m *MockService) GenerateTitle(ctx context.Context, id, userID uint64) (*domain.AgentChat, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AgentChat), args.Error(1)
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler(zap.NewNop()))
	router.Use(func(c *gin.Context) {
		c.Set("user_id", uint64(1))
		c.Next()
	})
	router.GET("/agent/chats", handler.ListChats)
	router.POST("/agent/chats", handler.CreateChat)
	router.GET("/agent/chats/:id", handler.GetChat)
	router.PATCH("/agent/chats/:id", handler.RenameChat)
	router.DELETE("/agent/chats/:id", handler.DeleteChat)
	router.POST("/agent/chats/:id/messages", handler.AddMessage)
	router.POST("/agent/chats/:id/ask", handler.Ask)
	router.POST("/agent/chats/:id/generate-title", handler.GenerateTitle)
	return router
}

func TestCreateChatHandler_EmptyBody(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("CreateChat", mock.Anything, uint64(1), "").
		Return(&domain.AgentChat{ID: 3, UserID: 1, Title: DefaultChatTitle}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/agent/chats", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"New Chat"`)
}

func TestGetChatHandler_NotFound(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("GetChat", mock.Anything, uint64(5), uint64(1)).
		Return(nil, errors.NotFound("Chat not found", nil))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/agent/chats/5", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAskHandler_Unconfigured(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("Ask", mock.Anything, uint64(5), uint64(1), "hi").Return(nil, errNotConfigured)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/agent/chats/5/ask", bytes.NewBufferString(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAddMessageHandler(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("AddMessage", mock.Anything, uint64(5), uint64(1), "assistant", "hello").
		Return(&domain.AgentMessage{ID: 9, ChatID: 5, Role: "assistant", Content: "hello"}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/agent/chats/5/messages",
		bytes.NewBufferString(`{"role":"assistant","content":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockService.AssertExpectations(t)
}

func TestDeleteChatHandler(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("DeleteChat", mock.Anything, uint64(5), uint64(1)).Return(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodDelete, "/agent/chats/5", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}
