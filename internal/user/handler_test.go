package user

import (
	"bytes"
	"clurb/internal/auth"
	"clurb/internal/domain"
	"clurb/internal/errors"
	"clurb/internal/middleware"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockService is a mock implementation of the Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) Register(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockService) GetUserByID(ctx context.Context, id uint64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockService) IncreaseTokenVersion(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockService) UpdateProfile(ctx context.Context, id uint64, input ProfileInput) (*domain.User, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockService) SearchUsers(ctx context.Context, query string, requesterID uint64) ([]domain.Profile, error) {
	args := m.Called(ctx, query, requesterID)
	if args.Get(0) == nil {
		return []domain.Profile{}, args.Error(1)
	}
	return args.Get(0).([]domain.Profile), args.Error(1)
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth.SetSecret("user-handler-secret")
	router := gin.New()
	router.Use(middleware.ErrorHandler(zap.NewNop()))
	return router
}

func withUser(id uint64, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", id)
		h(c)
	}
}

func TestRegister_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService, zap.NewNop())
	router := setupRouter()

	mockService.On("Register", mock.Anything, mock.MatchedBy(func(user *domain.User) bool {
		return user.Name == "John Doe" &&
			user.Username == "johnd" &&
			user.Email == "john@example.com" &&
			user.Password == "password123"
	})).Return(nil).Run(func(args mock.Arguments) {
		user := args.Get(1).(*domain.User)
		user.ID = 1
		user.CreatedAt = time.Now()
		user.UpdatedAt = time.Now()
	})

	router.POST("/register", handler.Register)

	payload := FormRegister{
		Name:     "John Doe",
		Username: "johnd",
		Email:    "john@example.com",
		Password: "password123",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", "/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.NotNil(t, response["user"])
	assert.NotContains(t, w.Body.String(), "password")
	mockService.AssertExpectations(t)
}

func TestRegister_InvalidEmail(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService, zap.NewNop())
	router := setupRouter()
	router.POST("/register", handler.Register)

	payload := FormRegister{Name: "John", Username: "johnd", Email: "not-an-email", Password: "password123"}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", "/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var response map[string]map[string]string
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "must be a valid email", response["errors"]["Email"])
}

func TestRegister_ShortPassword(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService, zap.NewNop())
	router := setupRouter()
	router.POST("/register", handler.Register)

	payload := FormRegister{Name: "John", Username: "johnd", Email: "john@example.com", Password: "123"}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", "/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	mockService.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestLogin_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService, zap.NewNop())
	router := setupRouter()

	user := &domain.User{ID: 1, Name: "John Doe", Email: "john@example.com", IsActive: true}
	mockService.On("Login", mock.Anything, "john@example.com", "password123").Return(user, nil)

	router.POST("/login", handler.Login)

	body, _ := json.Marshal(FormLogin{Email: "john@example.com", Password: "password123"})
	req := httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.NotEmpty(t, response["access_token"])
	assert.NotNil(t, response["user"])

	var refresh *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "refresh_token" {
			refresh = ck
		}
	}
	if assert.NotNil(t, refresh) {
		assert.True(t, refresh.HttpOnly)
	}
	mockService.AssertExpectations(t)
}

func TestLogin_WrongPassword(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService, zap.NewNop())
	router := setupRouter()

	mockService.On("Login", mock.Anything, "john@example.com", "wrong").
		Return(nil, errors.Unauthorized("Invalid email or password", nil))

	router.POST("/login", handler.Login)

	body, _ := json.Marshal(FormLogin{Email: "john@example.com", Password: "wrong"})
	req := httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshToken_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService, zap.NewNop())
	router := setupRouter()

	mockService.On("GetUserByID", mock.Anything, uint64(1)).Return(&domain.User{ID: 1, TokenVersion: 4}, nil)
	router.POST("/refresh", handler.RefreshToken)

	refresh, _ := auth.GenerateRefreshToken(1, 4)
	req := httptest.NewRequest("POST", "/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refresh})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshToken_AccessTokenRejected(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService, zap.NewNop())
	router := setupRouter()
	router.POST("/refresh", handler.RefreshToken)

	access, _ := auth.GenerateAccessToken(1, 4)
	req := httptest.NewRequest("POST", "/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: access})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService, zap.NewNop())
	router := setupRouter()

	mockService.On("IncreaseTokenVersion", mock.Anything, uint64(1)).Return(nil)
	router.POST("/logout", withUser(1, handler.Logout))

	req := httptest.NewRequest("POST", "/logout", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockService.AssertExpectations(t)
}

func TestGetProfile_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService, zap.NewNop())
	router := setupRouter()

	user := &domain.User{ID: 1, Name: "John Doe", Username: "johnd", Email: "john@example.com", IsActive: true}
	mockService.On("GetUserByID", mock.Anything, uint64(1)).Return(user, nil)
	router.GET("/profile", withUser(1, handler.GetProfile))

	req := httptest.NewRequest("GET", "/profile", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response domain.SafeUser
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "johnd", response.Username)
}

func TestGetProfile_NoUserID(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService, zap.NewNop())
	router := setupRouter()
	router.GET("/profile", handler.GetProfile)

	req := httptest.NewRequest("GET", "/profile", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateProfile_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService, zap.NewNop())
	router := setupRouter()

	name := "Johnny"
	mockService.On("UpdateProfile", mock.Anything, uint64(1), ProfileInput{DisplayName: &name}).
		Return(&domain.User{ID: 1, DisplayName: &name}, nil)
	router.PATCH("/profile", withUser(1, handler.UpdateProfile))

	req := httptest.NewRequest("PATCH", "/profile", bytes.NewBufferString(`{"display_name":"Johnny"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestSearchUsers_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService, zap.NewNop())
	router := setupRouter()

	mockService.On("SearchUsers", mock.Anything, "jo", uint64(1)).
		Return([]domain.Profile{{ID: 2, Username: "joan"}}, nil)
	router.GET("/users/search", withUser(1, handler.SearchUsers))

	req := httptest.NewRequest("GET", "/users/search?q=jo", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response []domain.Profile
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Len(t, response, 1)
}

func TestSearchUsers_Error(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService, zap.NewNop())
	router := setupRouter()

	mockService.On("SearchUsers", mock.Anything, "jo", uint64(1)).Return(nil, errors.Internal(assert.AnError))
	router.GET("/users/search", withUser(1, handler.SearchUsers))

	req := httptest.NewRequest("GET", "/users/search?q=jo", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
