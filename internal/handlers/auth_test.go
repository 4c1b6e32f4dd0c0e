package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"forum-service/internal/mocks"
	"forum-service/internal/models"
	"forum-service/internal/repositories"
	"forum-service/internal/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupAuthRouter(handler *AuthHandler) *gin.Engine {
	r := gin.New()
	r.POST("/signup", handler.Signup)
	r.POST("/login", handler.Login)
	r.POST("/logout", handler.Logout)
	return r
}

func postForm(r http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSignupSuccess(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	pub := &mocks.RecordingPublisher{}
	audit := telemetry.NewAuditEmitter(pub, "audit.forum", "forum-service", "test")
	router := setupAuthRouter(NewAuthHandler(users, new(mocks.SessionRepositoryMock), audit, 32))

	users.On("UserExists", mock.Anything, "alice").Return(false, nil).Once()
	users.On("CreateUser", mock.Anything, "alice", "pw").Return(models.User{ID: 1, Username: "alice"}, nil).Once()

	rec := postForm(router, "/signup", url.Values{"username": {"  alice "}, "password": {"pw"}, "confirm": {"pw"}})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":1,"username":"alice"}`, rec.Body.String())
	users.AssertExpectations(t)

	published := pub.Events()
	require.Len(t, published, 1)
	env := published[0].Event.(telemetry.AuditEnvelope)
	assert.Equal(t, "user.signup", env.Payload.Action)
}

func TestSignupValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "missing username", body: `{"password":"pw","confirm":"pw"}`, want: "missing credentials"},
		{name: "blank username", body: `{"username":"   ","password":"pw","confirm":"pw"}`, want: "missing credentials"},
		{name: "missing password", body: `{"username":"bob"}`, want: "missing credentials"},
		{name: "mismatch", body: `{"username":"bob","password":"a","confirm":"b"}`, want: "passwords do not match"},
		{name: "too long", body: `{"username":"` + strings.Repeat("x", 33) + `","password":"a","confirm":"a"}`, want: "username too long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(mocks.UserRepositoryMock)
			router := setupAuthRouter(NewAuthHandler(users, new(mocks.SessionRepositoryMock), nil, 32))

			rec := postJSON(router, "/signup", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp["error"])
			users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSignupUsernameTaken(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupAuthRouter(NewAuthHandler(users, new(mocks.SessionRepositoryMock), nil, 32))
	users.On("UserExists", mock.Anything, "alice").Return(true, nil).Once()

	rec := postJSON(router, "/signup", `{"username":"alice","password":"pw","confirm":"pw"}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	users.AssertExpectations(t)
}

func TestSignupRaceLostToConcurrentCreate(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupAuthRouter(NewAuthHandler(users, new(mocks.SessionRepositoryMock), nil, 32))
	users.On("UserExists", mock.Anything, "alice").Return(false, nil).Once()
	users.On("CreateUser", mock.Anything, "alice", "pw").Return(nil, repositories.ErrUserExists).Once()

	rec := postJSON(router, "/signup", `{"username":"alice","password":"pw","confirm":"pw"}`)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginSuccessSetsCookie(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	sessions := new(mocks.SessionRepositoryMock)
	router := setupAuthRouter(NewAuthHandler(users, sessions, nil, 32))

	users.On("VerifyUser", mock.Anything, "alice", "pw").Return(models.User{ID: 1, Username: "alice"}, nil).Once()
	sessions.On("CreateSession", mock.Anything, 1).Return("tok-123", nil).Once()

	rec := postForm(router, "/login", url.Values{"username": {"alice"}, "password": {"pw"}})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "tok-123", resp.Token)
	assert.Equal(t, "alice", resp.User.Username)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, "sid", cookie.Name)
	assert.Equal(t, "tok-123", cookie.Value)
	assert.Equal(t, sessionMaxAge, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	users.AssertExpectations(t)
	sessions.AssertExpectations(t)
}

func TestLoginSecureCookieBehindTLSProxy(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	sessions := new(mocks.SessionRepositoryMock)
	router := setupAuthRouter(NewAuthHandler(users, sessions, nil, 32))
	users.On("VerifyUser", mock.Anything, "alice", "pw").Return(models.User{ID: 1, Username: "alice"}, nil).Once()
	sessions.On("CreateSession", mock.Anything, 1).Return("tok", nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"alice","password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.True(t, rec.Result().Cookies()[0].Secure)
}

func TestLoginFailures(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupAuthRouter(NewAuthHandler(users, new(mocks.SessionRepositoryMock), nil, 32))

	rec := postJSON(router, "/login", `{"username":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	users.On("VerifyUser", mock.Anything, "alice", "bad").Return(nil, repositories.ErrInvalidCredentials).Once()
	rec = postJSON(router, "/login", `{"username":"alice","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	users.On("VerifyUser", mock.Anything, "alice", "pw").Return(nil, assert.AnError).Once()
	rec = postJSON(router, "/login", `{"username":"alice","password":"pw"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	users.AssertExpectations(t)
}

func TestLogoutDeletesSession(t *testing.T) {
	sessions := new(mocks.SessionRepositoryMock)
	router := setupAuthRouter(NewAuthHandler(new(mocks.UserRepositoryMock), sessions, nil, 32))
	sessions.On("DeleteSession", mock.Anything, "tok").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "tok"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
	sessions.AssertExpectations(t)
}

func TestLogoutWithoutSession(t *testing.T) {
	sessions := new(mocks.SessionRepositoryMock)
	router := setupAuthRouter(NewAuthHandler(new(mocks.UserRepositoryMock), sessions, nil, 32))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	sessions.AssertNotCalled(t, "DeleteSession", mock.Anything, mock.Anything)
}
