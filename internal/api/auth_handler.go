package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artomate-backend/internal/core"
	"artomate-backend/internal/identity"
	"artomate-backend/internal/middleware"
	"artomate-backend/internal/models"
)

// AuthHandler handles account and session endpoints.
type AuthHandler struct {
	userService core.UserService
	authService core.AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(us core.UserService, as core.AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{userService: us, authService: as, logger: logger}
}

// currentUserID returns the authenticated caller, writing a 401 when there is none.
func currentUserID(c *gin.Context) (string, bool) {
	uid := c.GetString(middleware.ContextUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication error: User ID not found in context"})
		return "", false
	}
	return uid, true
}

// mapAuthErrorToStatus maps identity failures onto the fixed auth message table.
func mapAuthErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	if errors.Is(err, core.ErrNotificationUnavailable) {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Email delivery is not available right now"})
		return
	}

	code := identity.Classify(err)
	var statusCode int
	switch code {
	case identity.CodeEmailAlreadyInUse:
		statusCode = http.StatusConflict
	case identity.CodeWeakPassword, identity.CodeInvalidEmail:
		statusCode = http.StatusBadRequest
	case identity.CodeUserNotFound:
		statusCode = http.StatusNotFound
	case identity.CodeWrongPassword:
		statusCode = http.StatusUnauthorized
	default:
		logger.Error("Identity operation failed", zap.Error(err))
		statusCode = http.StatusInternalServerError
	}
	c.JSON(statusCode, ErrorResponse{Error: identity.Message(code), Details: code})
}

// InitializeUserProfile handles POST /api/v1/users/initialize.
// Called by the client after every sign-in so the profile document exists.
func (h *AuthHandler) InitializeUserProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, created, err := h.userService.GetOrCreate(c.Request.Context(), userID,
		c.GetString(middleware.ContextUserEmail),
		c.GetString(middleware.ContextUserDisplayName),
		c.GetString(middleware.ContextUserPhotoURL))
	if err != nil {
		h.logger.Error("Failed to initialize user profile", zap.String("userID", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to initialize user profile", Details: err.Error()})
		return
	}

	if created {
		c.JSON(http.StatusCreated, user)
		return
	}
	c.JSON(http.StatusOK, user)
}

// SignUp handles POST /api/v1/auth/signup.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: bindingErrorDetails(err)})
		return
	}

	user, err := h.authService.SignUp(c.Request.Context(), req)
	if err != nil {
		mapAuthErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// SendPasswordReset handles POST /api/v1/auth/password-reset.
func (h *AuthHandler) SendPasswordReset(c *gin.Context) {
	var req models.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: bindingErrorDetails(err)})
		return
	}

	if err := h.authService.SendPasswordReset(c.Request.Context(), req.Email); err != nil {
		mapAuthErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Password reset email sent"})
}

// SignOut handles POST /api/v1/auth/signout. Every refresh token is revoked,
// so the client's session observer sees the sign-out on all devices.
func (h *AuthHandler) SignOut(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.authService.SignOut(c.Request.Context(), userID); err != nil {
		mapAuthErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Signed out"})
}

// Session handles GET /api/v1/auth/session.
func (h *AuthHandler) Session(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SessionResponse{
		UID:         userID,
		Email:       c.GetString(middleware.ContextUserEmail),
		DisplayName: c.GetString(middleware.ContextUserDisplayName),
		ExpiresAt:   time.Unix(c.GetInt64(middleware.ContextTokenExpiresAt), 0).UTC(),
	})
}
