package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"forum-service/internal/mocks"
	"forum-service/internal/models"
	"forum-service/internal/repositories"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authRouter(sessions repositories.SessionRepository) *gin.Engine {
	r := gin.New()
	r.GET("/me", SessionAuth(sessions), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"id":       c.GetInt("userID"),
			"username": c.GetString("username"),
			"token":    c.GetString("sessionToken"),
		})
	})
	return r
}

func TestSessionAuthCookie(t *testing.T) {
	sessions := new(mocks.SessionRepositoryMock)
	sessions.On("GetUserBySession", mock.Anything, "tok").Return(models.User{ID: 4, Username: "alice"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "tok"})
	rec := httptest.NewRecorder()
	authRouter(sessions).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":4,"username":"alice","token":"tok"}`, rec.Body.String())
	sessions.AssertExpectations(t)
}

func TestSessionAuthBearer(t *testing.T) {
	sessions := new(mocks.SessionRepositoryMock)
	sessions.On("GetUserBySession", mock.Anything, "abc").Return(models.User{ID: 2, Username: "bob"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	authRouter(sessions).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	sessions.AssertExpectations(t)
}

func TestSessionAuthRejects(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*http.Request, *mocks.SessionRepositoryMock)
	}{
		{name: "no identity", setup: func(*http.Request, *mocks.SessionRepositoryMock) {}},
		{name: "malformed header", setup: func(r *http.Request, _ *mocks.SessionRepositoryMock) {
			r.Header.Set("Authorization", "Token abc")
		}},
		{name: "unknown session", setup: func(r *http.Request, m *mocks.SessionRepositoryMock) {
			r.Header.Set("Authorization", "Bearer gone")
			m.On("GetUserBySession", mock.Anything, "gone").Return(nil, repositories.ErrSessionNotFound).Once()
		}},
		{name: "store failure", setup: func(r *http.Request, m *mocks.SessionRepositoryMock) {
			r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "x"})
			m.On("GetUserBySession", mock.Anything, "x").Return(nil, errors.New("boom")).Once()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := new(mocks.SessionRepositoryMock)
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req, sessions)
			rec := httptest.NewRecorder()
			authRouter(sessions).ServeHTTP(rec, req)

			require.Equal(t, http.StatusNotFound, rec.Code)
			assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())
			sessions.AssertExpectations(t)
		})
	}
}

func TestRequestIDPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/", func(c *gin.Context) {
		assert.NotNil(t, LoggerFrom(c))
		c.String(http.StatusOK, c.GetString("requestID"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "rid-1", rec.Body.String())
	assert.Equal(t, "rid-1", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, rec.Header().Get("X-Request-ID"), rec.Body.String())
}

func TestLoggerFromWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, LoggerFrom(c))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 2))
	assert.Equal(t, "abcdef", truncate("abcdef", 0))
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	r := gin.New()
	r.POST("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "198.51.100.1:5000"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "other clients have their own bucket")
}

func TestRateLimiterEvictsIdle(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.visitors["stale"] = &visitor{limiter: nil, lastSeen: rl.now().Add(-11 * time.Minute)}
	rl.evict(rl.now())
	assert.NotContains(t, rl.visitors, "stale")
}
