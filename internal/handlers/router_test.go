package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"forum-service/internal/middleware"
	"forum-service/internal/mocks"
	"forum-service/internal/models"
	"forum-service/internal/telemetry"
	"forum-service/internal/ws"
)

type routerFixture struct {
	router   *gin.Engine
	sessions *mocks.SessionRepositoryMock
	topics   *mocks.TopicRepositoryMock
	users    *mocks.UserRepositoryMock
	audit    *mocks.RecordingPublisher
}

func newRouterFixture(debug bool, limiter *middleware.RateLimiter) routerFixture {
	f := routerFixture{
		sessions: new(mocks.SessionRepositoryMock),
		topics:   new(mocks.TopicRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
		audit:    &mocks.RecordingPublisher{},
	}
	messages := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub()
	emitter := telemetry.NewAuditEmitter(f.audit, "audit.forum", "forum-service", "test")
	f.router = NewRouter(RouterDeps{
		Auth:         NewAuthHandler(f.users, f.sessions, emitter, 32),
		Topics:       NewTopicHandler(f.topics, messages, emitter, 80),
		TopicWS:      ws.NewTopicWebSocketHandler(hub, ws.NewBroadcaster(hub, nil), nil, f.topics, nil, ws.Options{}),
		Sessions:     f.sessions,
		LoginLimiter: limiter,
		Audit:        emitter,
		Hub:          hub,
		LoginPath:    "/door",
		DebugRoutes:  debug,
	})
	return f
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestPublicRoutes(t *testing.T) {
	f := newRouterFixture(false, nil)

	rec := get(f.router, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"service":"forum-service","login":"/door"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = get(f.router, "/robots.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User-agent: *\nDisallow: /\n", rec.Body.String())

	assert.Equal(t, http.StatusOK, get(f.router, "/healthz").Code)

	rec = get(f.router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "forum_http_requests_total")
}

func TestUnknownAndProtectedRoutesAre404(t *testing.T) {
	f := newRouterFixture(false, nil)

	for _, path := range []string{"/nope", "/api/topics", "/api/topics/1", "/ws/topic/1", "/debug/audit-test"} {
		rec := get(f.router, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String(), path)
	}
	f.sessions.AssertNotCalled(t, "GetUserBySession", mock.Anything, mock.Anything)
}

func TestAuthenticatedAPIIsReachable(t *testing.T) {
	f := newRouterFixture(false, nil)
	f.sessions.On("GetUserBySession", mock.Anything, "tok").Return(models.User{ID: 1, Username: "alice"}, nil).Once()
	f.topics.On("ListTopics", mock.Anything).Return([]models.Topic{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/topics", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"topics":[]}`, rec.Body.String())
	f.sessions.AssertExpectations(t)
	f.topics.AssertExpectations(t)
}

func TestLoginIsRateLimited(t *testing.T) {
	f := newRouterFixture(false, middleware.NewRateLimiter(0.001, 1))

	rec := postJSON(f.router, "/door", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = postJSON(f.router, "/door", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestDebugRoutes(t *testing.T) {
	f := newRouterFixture(true, nil)

	rec := get(f.router, "/debug/audit-test")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"audit.forum"}, f.audit.RoutingKeys())

	rec = get(f.router, "/debug/rooms")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rooms":0}`, rec.Body.String())
}
