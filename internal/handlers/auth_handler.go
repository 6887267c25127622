package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "solconta/internal/errors"
	"solconta/internal/logger"
	"solconta/internal/middleware"
	"solconta/internal/models"
	"solconta/internal/services"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	identityService services.IdentityServicer
	auditService    services.AuditServicer
	appURL          string
}

// NewAuthHandler creates a new AuthHandler. appURL is where OAuth callbacks
// send the browser back to.
func NewAuthHandler(identityService services.IdentityServicer, auditService services.AuditServicer, appURL string) *AuthHandler {
	return &AuthHandler{
		identityService: identityService,
		auditService:    auditService,
		appURL:          strings.TrimRight(appURL, "/"),
	}
}

// CredentialsRequest is the payload of sign-up and login.
type CredentialsRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,max=128"`
}

// RefreshRequest represents the token refresh request payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenRequest carries an emailed confirmation or recovery token.
type TokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// RecoverRequest asks for a password recovery email.
type RecoverRequest struct {
	Email      string `json:"email" binding:"required,email,max=255"`
	RedirectTo string `json:"redirect_to" binding:"omitempty,url"`
}

// UpdatePasswordRequest sets a new password for the signed-in user.
type UpdatePasswordRequest struct {
	Password string `json:"password" binding:"required,max=128"`
}

// UserResponse represents the user data in the response
type UserResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Provider         string     `json:"provider"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	LastSignInAt     *time.Time `json:"last_sign_in_at,omitempty"`
}

// SessionResponse is an issued session.
type SessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         UserResponse `json:"user"`
}

// SignUpResponse carries the new user and, when no confirmation is
// pending, a session.
type SignUpResponse struct {
	User    UserResponse     `json:"user"`
	Session *SessionResponse `json:"session"`
}

func newUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:               user.ID,
		Email:            user.Email,
		Provider:         string(user.Provider),
		EmailConfirmedAt: user.EmailConfirmedAt,
		LastSignInAt:     user.LastSignInAt,
	}
}

// newSession issues a token pair and stores the refresh token hash, which
// revokes any previously issued refresh token.
func (h *AuthHandler) newSession(user *models.User) (*SessionResponse, error) {
	pair, err := middleware.GenerateTokenPair(user)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := h.identityService.StoreRefreshTokenHash(user.ID, middleware.HashToken(pair.RefreshToken)); err != nil {
		return nil, err
	}
	return &SessionResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(time.Until(pair.ExpiresAt).Seconds()),
		ExpiresAt:    pair.ExpiresAt.Unix(),
		User:         newUserResponse(user),
	}, nil
}

func (h *AuthHandler) respondWithSession(c *gin.Context, status int, user *models.User) {
	session, err := h.newSession(user)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(status, session)
}

// SignUp handles user registration
// @Summary     Register a new user
// @Description Register with email and password. A session is returned only when no email confirmation is required.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body CredentialsRequest true "User registration data"
// @Success     201 {object} SignUpResponse "User registered"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "User already registered"
// @Failure     422 {object} ErrorResponse "Weak password"
// @Router      /auth/signup [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.identityService.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.auditService.Log(user.ID, models.AuditSignUp, models.ResourceUser, user.ID, c.ClientIP(), nil)

	resp := SignUpResponse{User: newUserResponse(user)}
	if user.Confirmed() {
		if resp.Session, err = h.newSession(user); err != nil {
			respondWithError(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, resp)
}

// Login handles user login
// @Summary     Login user
// @Description Authenticate with email and password
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body CredentialsRequest true "User login credentials"
// @Success     200 {object} SessionResponse "Session issued"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid credentials or email not confirmed"
// @Failure     429 {object} ErrorResponse "Too many attempts"
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.identityService.SignIn(req.Email, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.respondWithSession(c, http.StatusOK, user)
}

// Refresh exchanges a refresh token for a new session
// @Summary     Refresh session
// @Description Rotate the refresh token and issue a new access token
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body RefreshRequest true "Refresh token"
// @Success     200 {object} SessionResponse "Session refreshed"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid refresh token"
// @Router      /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	claims, err := middleware.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		respondWithError(c, apperrors.ErrInvalidToken)
		return
	}

	user, err := h.identityService.VerifyRefreshToken(claims.UserID, middleware.HashToken(req.RefreshToken))
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.respondWithSession(c, http.StatusOK, user)
}

// Confirm verifies an email confirmation token
// @Summary     Confirm email
// @Description Confirm the email address and sign the user in
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body TokenRequest true "Confirmation token"
// @Success     200 {object} SessionResponse "Email confirmed"
// @Failure     401 {object} ErrorResponse "Invalid or expired token"
// @Router      /auth/confirm [post]
func (h *AuthHandler) Confirm(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.identityService.ConfirmEmail(req.Token)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.respondWithSession(c, http.StatusOK, user)
}

// Recover sends a password recovery email
// @Summary     Request password reset
// @Description Email a recovery link. The response does not reveal whether the account exists.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body RecoverRequest true "Account email"
// @Success     200 {object} MessageResponse "Recovery email requested"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     429 {object} ErrorResponse "Too many requests"
// @Router      /auth/recover [post]
func (h *AuthHandler) Recover(c *gin.Context) {
	var req RecoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	if err := h.identityService.RequestPasswordReset(c.Request.Context(), req.Email, req.RedirectTo); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "If the account exists, a recovery email has been sent"})
}

// RecoverVerify exchanges a recovery token for a session
// @Summary     Verify recovery token
// @Description Sign in with a recovery token so a new password can be set
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body TokenRequest true "Recovery token"
// @Success     200 {object} SessionResponse "Recovery session"
// @Failure     401 {object} ErrorResponse "Invalid or expired token"
// @Router      /auth/recover/verify [post]
func (h *AuthHandler) RecoverVerify(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.identityService.RecoverWithToken(req.Token)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.respondWithSession(c, http.StatusOK, user)
}

// OAuthStart redirects to the provider's consent page
// @Summary     Start OAuth sign-in
// @Tags        auth
// @Param       provider path string true "Provider name" Enums(google)
// @Success     302
// @Failure     400 {object} ErrorResponse "Provider not enabled"
// @Router      /auth/oauth/{provider} [get]
func (h *AuthHandler) OAuthStart(c *gin.Context) {
	provider := c.Param("provider")

	state, err := middleware.GenerateStateToken(provider)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	target, err := h.identityService.OAuthURL(provider, state)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// OAuthCallback completes the OAuth flow and sends the browser back to the
// app with the session in the URL fragment.
// @Summary     OAuth callback
// @Tags        auth
// @Param       provider path string true "Provider name"
// @Param       code query string false "Authorization code"
// @Param       state query string true "Signed state"
// @Success     302
// @Router      /auth/oauth/{provider}/callback [get]
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	provider := c.Param("provider")

	if desc := c.Query("error"); desc != "" {
		h.redirectWithError(c, c.DefaultQuery("error_description", desc))
		return
	}
	if err := middleware.ValidateStateToken(c.Query("state"), provider); err != nil {
		h.redirectWithError(c, "Invalid OAuth state")
		return
	}

	user, err := h.identityService.SignInWithOAuth(c.Request.Context(), provider, c.Query("code"))
	if err != nil {
		logger.Get().Warnw("oauth sign-in failed", "provider", provider, "error", err)
		h.redirectWithError(c, err.Error())
		return
	}

	session, err := h.newSession(user)
	if err != nil {
		respondWithError(c, err)
		return
	}

	fragment := url.Values{}
	fragment.Set("access_token", session.AccessToken)
	fragment.Set("refresh_token", session.RefreshToken)
	fragment.Set("expires_at", strconv.FormatInt(session.ExpiresAt, 10))
	fragment.Set("token_type", session.TokenType)
	c.Redirect(http.StatusFound, h.appURL+"/auth/callback#"+fragment.Encode())
}

func (h *AuthHandler) redirectWithError(c *gin.Context, description string) {
	fragment := url.Values{}
	fragment.Set("error_description", description)
	c.Redirect(http.StatusFound, h.appURL+"/login#"+fragment.Encode())
}

// Logout revokes the refresh token
// @Summary     Logout
// @Tags        auth
// @Security    BearerAuth
// @Success     200 {object} MessageResponse "Signed out"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.identityService.SignOut(userID); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Signed out"})
}

// UpdatePassword changes the signed-in user's password
// @Summary     Update password
// @Tags        auth
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpdatePasswordRequest true "New password"
// @Success     200 {object} UserResponse "Password updated"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} ErrorResponse "Weak or unchanged password"
// @Router      /auth/password [put]
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.identityService.UpdatePassword(userID, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.auditService.Log(userID, models.AuditUpdatePassword, models.ResourceUser, userID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

// GetProfile returns the user's profile
// @Summary     Get user profile
// @Description Get the authenticated user's profile information
// @Tags        user
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} UserResponse "User profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.identityService.GetUserByID(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}
