package progress

import (
	"bytes"
	"clurb/internal/domain"
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

func (m *MockService) RecordPage(ctx context.Context, documentID, userID uint64, page int) error {
	args := m.Called(ctx, documentID, userID, page)
	return args.Error(0)
}

func (m *MockService) GetProgress(ctx context.Context, documentID, userID uint64) (*domain.ReadingProgress, error) {
	args := m.Called(ctx, documentID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReadingProgress), args.Error(1)
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler(zap.NewNop()))
	router.Use(func(c *gin.Context) {
		c.Set("user_id", uint64(10))
		c.Next()
	})
	router.PUT("/documents/:id/progress", handler.RecordPage)
	router.GET("/documents/:id/progress", handler.Show)
	return router
}

func TestRecordPageHandler_Accepted(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("RecordPage", mock.Anything, uint64(3), uint64(10), 5).Return(nil)

	req := httptest.NewRequest("PUT", "/documents/3/progress", bytes.NewBufferString(`{"page":5}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	mockService.AssertExpectations(t)
}

func TestRecordPageHandler_ZeroPage(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	req := httptest.NewRequest("PUT", "/documents/3/progress", bytes.NewBufferString(`{"page":0}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	mockService.AssertNotCalled(t, "RecordPage")
}

func TestShowHandler_InvalidID(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	req := httptest.NewRequest("GET", "/documents/abc/progress", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
