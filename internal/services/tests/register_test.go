package services_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IlyacloudDev/QuickTalk/app/tests"
	"github.com/IlyacloudDev/QuickTalk/internal/handlers"
	"github.com/IlyacloudDev/QuickTalk/internal/models"
	"github.com/IlyacloudDev/QuickTalk/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

func TestRegister_TableDrive(t *testing.T) {
	var ts = []struct {
		name         string
		requestBody  map[string]interface{}
		setupMocks   func(*tests.MockUserRepository, *tests.MockHasher)
		expectedCode int
		expectedBody string
	}{
		{
			name: "Successful registration",
			requestBody: map[string]interface{}{
				"username": "newuser",
				"password": "password123",
				"email":    "new@example.com",
			},
			setupMocks: func(mur *tests.MockUserRepository, mph *tests.MockHasher) {
				mur.On("GetUserByName", mock.Anything, "newuser").Return((*models.User)(nil), nil)
				mph.On("DefaultCost").Return(bcrypt.DefaultCost)
				mph.On("GenerateFromPassword", []byte("password123"), bcrypt.DefaultCost).Return([]byte("hashed"), nil)
				mur.On("CreateUser", mock.Anything, "newuser", "hashed", "new@example.com").Return(int64(1), nil)
			},
			expectedCode: http.StatusCreated,
			expectedBody: "User registered successfully",
		},
		{
			name: "Username taken",
			requestBody: map[string]interface{}{
				"username": "existing",
				"password": "password123",
				"email":    "dup@example.com",
			},
			setupMocks: func(mur *tests.MockUserRepository, mph *tests.MockHasher) {
				mur.On("GetUserByName", mock.Anything, "existing").Return(&models.User{ID: 7, Username: "existing"}, nil)
			},
			expectedCode: http.StatusBadRequest,
			expectedBody: "username already exists",
		},
		{
			name: "Missing password",
			requestBody: map[string]interface{}{
				"username": "newuser",
			},
			setupMocks:   func(mur *tests.MockUserRepository, mph *tests.MockHasher) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: "username and password are required",
		},
	}

	for _, tt := range ts {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockRepository := &tests.MockUserRepository{}
			mockHasher := &tests.MockHasher{}
			mockTokens := &tests.MockTokenRepository{}
			logger := slog.Default()

			tt.setupMocks(mockRepository, mockHasher)

			var authService = services.NewAuthService(
				mockRepository, mockHasher,
				mockTokens, []byte(JwtKey), logger)

			var handler = handlers.NewAuthHandler(authService, logger, nil)

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			c.Request = tests.CreateTestRequest("/register", http.MethodPost, tt.requestBody)

			handler.Register(c)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)

			mockRepository.AssertExpectations(t)
			mockHasher.AssertExpectations(t)
		})
	}
}
