package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/shandle1/CheckDee-sub000/database"
	"github.com/shandle1/CheckDee-sub000/models"
	"github.com/shandle1/CheckDee-sub000/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupAuth(t *testing.T) (*gorm.DB, *services.JWTService) {
	t.Helper()
	db, err := database.OpenSQLite("file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared")
	require.NoError(t, err)
	return db, services.NewJWTService("test-secret", 1)
}

func protectedRouter(db *gorm.DB, tokens *services.JWTService, roles ...models.UserRole) *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(db, tokens), RequireRole(roles...), func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"id": user.ID, "user_id": c.GetUint("user_id")})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	db, tokens := setupAuth(t)
	active := models.User{FullName: "A", Email: "a@example.com", PasswordHash: "x", Role: models.RoleWorker, IsActive: true}
	inactive := models.User{FullName: "B", Email: "b@example.com", PasswordHash: "x", Role: models.RoleWorker, IsActive: true}
	require.NoError(t, db.Create(&active).Error)
	require.NoError(t, db.Create(&inactive).Error)
	require.NoError(t, db.Model(&inactive).Update("is_active", false).Error)

	activeToken, err := tokens.GenerateAccessToken(&active)
	require.NoError(t, err)
	inactiveToken, err := tokens.GenerateAccessToken(&inactive)
	require.NoError(t, err)
	foreignToken, err := services.NewJWTService("other-secret", 1).GenerateAccessToken(&active)
	require.NoError(t, err)
	ghostToken, err := tokens.GenerateAccessToken(&models.User{ID: 999, Role: models.RoleWorker})
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + activeToken, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"no bearer prefix", activeToken, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreignToken, http.StatusUnauthorized},
		{"unknown user", "Bearer " + ghostToken, http.StatusUnauthorized},
		{"inactive user", "Bearer " + inactiveToken, http.StatusUnauthorized},
	}

	router := protectedRouter(db, tokens, models.RoleWorker)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestRequireRole(t *testing.T) {
	db, tokens := setupAuth(t)
	worker := models.User{FullName: "W", Email: "w@example.com", PasswordHash: "x", Role: models.RoleWorker, IsActive: true}
	require.NoError(t, db.Create(&worker).Error)
	token, err := tokens.GenerateAccessToken(&worker)
	require.NoError(t, err)

	router := protectedRouter(db, tokens, models.RoleReviewer, models.RoleAdmin)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter()
	r := gin.New()
	r.POST("/submissions", RateLimitMiddleware(rl, rate.Every(time.Hour), 2), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/submissions", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, rl.Size())

	assert.Equal(t, 0, rl.Cleanup(time.Hour))
	assert.Equal(t, 1, rl.Cleanup(-time.Second))
	assert.Equal(t, 0, rl.Size())
}

func TestInputValidationMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(InputValidationMiddleware(16))
	r.POST("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(body, contentType string) int {
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send(`{}`, "application/json"))
	assert.Equal(t, http.StatusUnsupportedMediaType, send(`a=b`, "application/x-www-form-urlencoded"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, send(`{"notes":"far too long"}`, "application/json"))
}
