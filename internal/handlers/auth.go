package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"forum-service/internal/middleware"
	"forum-service/internal/observability"
	"forum-service/internal/repositories"
	"forum-service/internal/telemetry"
	"forum-service/internal/textutil"
)

const sessionMaxAge = 60 * 60 * 24 * 365

// AuthHandler serves signup, login and logout.
type AuthHandler struct {
	userRepo       repositories.UserRepository
	sessionRepo    repositories.SessionRepository
	audit          *telemetry.AuditEmitter
	maxUsernameLen int
}

// NewAuthHandler constructs an AuthHandler. audit may be nil.
func NewAuthHandler(userRepo repositories.UserRepository, sessionRepo repositories.SessionRepository, audit *telemetry.AuditEmitter, maxUsernameLen int) *AuthHandler {
	return &AuthHandler{
		userRepo:       userRepo,
		sessionRepo:    sessionRepo,
		audit:          audit,
		maxUsernameLen: maxUsernameLen,
	}
}

type credentialsRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
	Confirm  string `form:"confirm" json:"confirm"`
}

func bindCredentials(c *gin.Context) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		return req, false
	}
	req.Username = strings.TrimSpace(req.Username)
	return req, true
}

// Signup registers a new account.
func (h *AuthHandler) Signup(c *gin.Context) {
	req, ok := bindCredentials(c)
	if !ok || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing credentials"})
		return
	}
	if req.Password != req.Confirm {
		c.JSON(http.StatusBadRequest, gin.H{"error": "passwords do not match"})
		return
	}
	if h.maxUsernameLen > 0 && textutil.Length(req.Username) > h.maxUsernameLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username too long"})
		return
	}

	ctx := c.Request.Context()
	exists, err := h.userRepo.UserExists(ctx, req.Username)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	}

	user, err := h.userRepo.CreateUser(ctx, req.Username, req.Password)
	if errors.Is(err, repositories.ErrUserExists) {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	emitAudit(c, h.audit, "INFO", "user.signup", fmt.Sprintf("user %s signed up", user.Username), &user.ID)
	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username})
}

// Login verifies credentials and opens a session.
func (h *AuthHandler) Login(c *gin.Context) {
	req, ok := bindCredentials(c)
	if !ok || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing credentials"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.userRepo.VerifyUser(ctx, req.Username, req.Password)
	if errors.Is(err, repositories.ErrInvalidCredentials) {
		emitAudit(c, h.audit, "WARN", "user.login_failed", "failed login for "+req.Username, nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong username or password"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to login"})
		return
	}

	token, err := h.sessionRepo.CreateSession(ctx, user.ID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to login"})
		return
	}

	setSessionCookie(c, token, sessionMaxAge)
	emitAudit(c, h.audit, "INFO", "user.login", fmt.Sprintf("user %s logged in", user.Username), &user.ID)
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

// Logout deletes the caller's session, if any, and clears the cookie. It
// always succeeds.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token := middleware.SessionToken(c); token != "" {
		if err := h.sessionRepo.DeleteSession(c.Request.Context(), token); err != nil {
			_ = c.Error(err)
		}
		emitAudit(c, h.audit, "INFO", "user.logout", "session closed", nil)
	}
	setSessionCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.SessionCookie, token, maxAge, "/", "", observability.IsTLS(c.Request), true)
}
