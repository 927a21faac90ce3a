package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JACT-22/cobranza-funeraria/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func useMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	prev := config.DB
	config.DB = gdb
	t.Cleanup(func() {
		config.DB = prev
		db.Close()
	})
	return mock
}

func signedToken(t *testing.T, sub string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  sub,
		"role": "collector",
		"name": "Pedro Ramírez",
		"exp":  time.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(config.JwtKey)
	require.NoError(t, err)
	return token
}

func newAuthedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"collector_id": c.GetUint("collector_id"),
			"role":         c.GetString("role"),
		})
	})
	return r
}

func TestAuthMiddleware_ValidBearerToken(t *testing.T) {
	config.JwtKey = []byte("test-secret")
	mock := useMockDB(t)
	mock.ExpectQuery(`SELECT .* FROM "users" WHERE \(uuid =`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "username", "name", "role", "active"}).
			AddRow(3, "u-1111", "pedro", "Pedro Ramírez", "collector", true))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "u-1111", time.Hour))
	newAuthedRouter().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"collector_id":3`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	config.JwtKey = []byte("test-secret")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	newAuthedRouter().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	config.JwtKey = []byte("test-secret")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "u-1111", -time.Minute))
	newAuthedRouter().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthMiddleware_UnknownUser(t *testing.T) {
	config.JwtKey = []byte("test-secret")
	mock := useMockDB(t)
	mock.ExpectQuery(`SELECT .* FROM "users" WHERE \(uuid =`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "u-gone", time.Hour))
	newAuthedRouter().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(role string) *gin.Engine {
		r := gin.New()
		r.GET("/export", func(c *gin.Context) {
			c.Set("role", role)
		}, RequireAdmin(), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return r
	}

	rr := httptest.NewRecorder()
	newRouter("admin").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/export", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	newRouter("collector").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/export", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
