package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-checklist/internal/auth"
	"github.com/ukydev/fleet-checklist/internal/db"
	"github.com/ukydev/fleet-checklist/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockUserCollection is a mock implementation of UserCollection
type MockUserCollection struct {
	mock.Mock
}

func (m *MockUserCollection) InsertUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newAuthService(t *testing.T) *auth.Service {
	t.Helper()
	authService, err := auth.NewService("handler-secret", time.Hour)
	require.NoError(t, err)
	return authService
}

func postJSON(target string, v interface{}) *http.Request {
	body, _ := json.Marshal(v)
	return httptest.NewRequest("POST", target, bytes.NewBuffer(body))
}

func TestAuthHandler_Login(t *testing.T) {
	authService := newAuthService(t)
	passwordHash, err := authService.HashPassword("password123")
	require.NoError(t, err)

	t.Run("successful login", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, db.UserCollection(mockUserCollection))

		user := &models.User{
			ID:           primitive.NewObjectID(),
			Username:     "inspector1",
			PasswordHash: passwordHash,
			Role:         models.RoleInspector,
			IsActive:     true,
		}
		mockUserCollection.On("FindUserByUsername", mock.Anything, "inspector1").Return(user, nil)
		mockUserCollection.On("UpdateLastLogin", mock.Anything, user.ID.Hex()).Return(nil)

		w := httptest.NewRecorder()
		handler.Login(w, postJSON("/api/auth/login", models.LoginRequest{Username: "inspector1", Password: "password123"}))

		require.Equal(t, http.StatusOK, w.Code)
		var response models.LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, user.Username, response.User.Username)
		assert.NotContains(t, w.Body.String(), passwordHash)

		claims, err := authService.ValidateToken(response.Token)
		require.NoError(t, err)
		assert.Equal(t, models.RoleInspector, claims.Role)
		mockUserCollection.AssertExpectations(t)
	})

	t.Run("last login failure does not fail login", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		user := &models.User{ID: primitive.NewObjectID(), Username: "inspector1", PasswordHash: passwordHash, Role: models.RoleViewer, IsActive: true}
		mockUserCollection.On("FindUserByUsername", mock.Anything, "inspector1").Return(user, nil)
		mockUserCollection.On("UpdateLastLogin", mock.Anything, user.ID.Hex()).Return(assert.AnError)

		w := httptest.NewRecorder()
		handler.Login(w, postJSON("/api/auth/login", models.LoginRequest{Username: "inspector1", Password: "password123"}))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)
		mockUserCollection.On("FindUserByUsername", mock.Anything, "ghost").Return(nil, db.ErrUserNotFound)

		w := httptest.NewRecorder()
		handler.Login(w, postJSON("/api/auth/login", models.LoginRequest{Username: "ghost", Password: "password123"}))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockUserCollection.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)
		user := &models.User{ID: primitive.NewObjectID(), Username: "inspector1", PasswordHash: passwordHash, IsActive: true}
		mockUserCollection.On("FindUserByUsername", mock.Anything, "inspector1").Return(user, nil)

		w := httptest.NewRecorder()
		handler.Login(w, postJSON("/api/auth/login", models.LoginRequest{Username: "inspector1", Password: "wrongpassword"}))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockUserCollection.AssertNotCalled(t, "UpdateLastLogin", mock.Anything, mock.Anything)
	})

	t.Run("inactive user", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)
		user := &models.User{ID: primitive.NewObjectID(), Username: "inspector1", PasswordHash: passwordHash, IsActive: false}
		mockUserCollection.On("FindUserByUsername", mock.Anything, "inspector1").Return(user, nil)

		w := httptest.NewRecorder()
		handler.Login(w, postJSON("/api/auth/login", models.LoginRequest{Username: "inspector1", Password: "password123"}))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		handler := NewAuthHandler(authService, new(MockUserCollection))

		w := httptest.NewRecorder()
		handler.Login(w, postJSON("/api/auth/login", models.LoginRequest{Username: "inspector1"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		handler := NewAuthHandler(authService, new(MockUserCollection))

		w := httptest.NewRecorder()
		handler.Login(w, httptest.NewRequest("GET", "/api/auth/login", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestAuthHandler_Register(t *testing.T) {
	authService := newAuthService(t)

	t.Run("successful registration", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		mockUserCollection.On("FindUserByUsername", mock.Anything, "newuser").Return(nil, db.ErrUserNotFound)
		mockUserCollection.On("InsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Username == "newuser" && u.Role == models.RoleInspector && u.IsActive &&
				authService.CheckPassword("password123", u.PasswordHash)
		})).Return(nil)

		w := httptest.NewRecorder()
		handler.Register(w, postJSON("/api/auth/register", models.RegisterRequest{
			Username:    "newuser",
			DisplayName: "New Inspector",
			Password:    "password123",
			Role:        models.RoleInspector,
		}))

		require.Equal(t, http.StatusCreated, w.Code)
		var response models.LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "newuser", response.User.Username)
		assert.Equal(t, "New Inspector", response.User.DisplayName)
		mockUserCollection.AssertExpectations(t)
	})

	t.Run("username already exists", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)
		mockUserCollection.On("FindUserByUsername", mock.Anything, "existinguser").Return(&models.User{Username: "existinguser"}, nil)

		w := httptest.NewRecorder()
		handler.Register(w, postJSON("/api/auth/register", models.RegisterRequest{
			Username: "existinguser",
			Password: "password123",
			Role:     models.RoleViewer,
		}))

		assert.Equal(t, http.StatusConflict, w.Code)
		mockUserCollection.AssertNotCalled(t, "InsertUser", mock.Anything, mock.Anything)
	})

	t.Run("lookup failure", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)
		mockUserCollection.On("FindUserByUsername", mock.Anything, "newuser").Return(nil, assert.AnError)

		w := httptest.NewRecorder()
		handler.Register(w, postJSON("/api/auth/register", models.RegisterRequest{
			Username: "newuser",
			Password: "password123",
			Role:     models.RoleViewer,
		}))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	tests := []struct {
		name string
		req  models.RegisterRequest
	}{
		{"invalid role", models.RegisterRequest{Username: "newuser", Password: "password123", Role: "driver"}},
		{"short password", models.RegisterRequest{Username: "newuser", Password: "short", Role: models.RoleViewer}},
		{"short username", models.RegisterRequest{Username: " ab ", Password: "password123", Role: models.RoleViewer}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAuthHandler(authService, new(MockUserCollection))

			w := httptest.NewRecorder()
			handler.Register(w, postJSON("/api/auth/register", tt.req))

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAuthHandler_OversizedBody(t *testing.T) {
	authService := newAuthService(t)
	oversized := `{"username": "` + strings.Repeat("a", maxBodyBytes) + `", "password": "password123"}`

	t.Run("login", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		w := httptest.NewRecorder()
		handler.Login(w, httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(oversized)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Failed to read request body")
		mockUserCollection.AssertNotCalled(t, "FindUserByUsername", mock.Anything, mock.Anything)
	})

	t.Run("register", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		w := httptest.NewRecorder()
		handler.Register(w, httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(oversized)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Failed to read request body")
		mockUserCollection.AssertNotCalled(t, "FindUserByUsername", mock.Anything, mock.Anything)
	})

	t.Run("invalid json", func(t *testing.T) {
		handler := NewAuthHandler(authService, new(MockUserCollection))

		w := httptest.NewRecorder()
		handler.Login(w, httptest.NewRequest("POST", "/api/auth/login", strings.NewReader("{")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid JSON")
	})
}
