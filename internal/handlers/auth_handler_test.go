package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"solconta/internal/config"
	apperrors "solconta/internal/errors"
	"solconta/internal/middleware"
	"solconta/internal/models"
	"solconta/internal/services"
	"solconta/internal/validator"
)

const testUserID = "0192d3e4-5b6a-7c8d-9e0f-111111111111"

// --- mock services ---

type mockIdentityService struct {
	signUpFn               func(email, password string) (*models.User, error)
	confirmEmailFn         func(token string) (*models.User, error)
	signInFn               func(email, password string) (*models.User, error)
	getUserByIDFn          func(id string) (*models.User, error)
	storedHashes           map[string]string
	verifyRefreshTokenFn   func(userID, tokenHash string) (*models.User, error)
	signOutFn              func(userID string) error
	requestPasswordResetFn func(email, redirectURL string) error
	recoverWithTokenFn     func(token string) (*models.User, error)
	updatePasswordFn       func(userID, password string) (*models.User, error)
	oauthURLFn             func(provider, state string) (string, error)
	signInWithOAuthFn      func(provider, code string) (*models.User, error)
}

var _ services.IdentityServicer = (*mockIdentityService)(nil)

func (m *mockIdentityService) SignUp(_ context.Context, email, password string) (*models.User, error) {
	if m.signUpFn != nil {
		return m.signUpFn(email, password)
	}
	return confirmedUser(email), nil
}

func (m *mockIdentityService) ConfirmEmail(token string) (*models.User, error) {
	if m.confirmEmailFn != nil {
		return m.confirmEmailFn(token)
	}
	return confirmedUser("test@example.com"), nil
}

func (m *mockIdentityService) SignIn(email, password string) (*models.User, error) {
	if m.signInFn != nil {
		return m.signInFn(email, password)
	}
	return confirmedUser(email), nil
}

func (m *mockIdentityService) GetUserByID(id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return confirmedUser("test@example.com"), nil
}

func (m *mockIdentityService) StoreRefreshTokenHash(userID, tokenHash string) error {
	if m.storedHashes == nil {
		m.storedHashes = map[string]string{}
	}
	m.storedHashes[userID] = tokenHash
	return nil
}

func (m *mockIdentityService) VerifyRefreshToken(userID, tokenHash string) (*models.User, error) {
	if m.verifyRefreshTokenFn != nil {
		return m.verifyRefreshTokenFn(userID, tokenHash)
	}
	if m.storedHashes[userID] != tokenHash {
		return nil, apperrors.ErrInvalidToken
	}
	return confirmedUser("test@example.com"), nil
}

func (m *mockIdentityService) SignOut(userID string) error {
	if m.signOutFn != nil {
		return m.signOutFn(userID)
	}
	return nil
}

func (m *mockIdentityService) RequestPasswordReset(_ context.Context, email, redirectURL string) error {
	if m.requestPasswordResetFn != nil {
		return m.requestPasswordResetFn(email, redirectURL)
	}
	return nil
}

func (m *mockIdentityService) RecoverWithToken(token string) (*models.User, error) {
	if m.recoverWithTokenFn != nil {
		return m.recoverWithTokenFn(token)
	}
	return confirmedUser("test@example.com"), nil
}

func (m *mockIdentityService) UpdatePassword(userID, password string) (*models.User, error) {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(userID, password)
	}
	return confirmedUser("test@example.com"), nil
}

func (m *mockIdentityService) OAuthURL(provider, state string) (string, error) {
	if m.oauthURLFn != nil {
		return m.oauthURLFn(provider, state)
	}
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state), nil
}

func (m *mockIdentityService) SignInWithOAuth(_ context.Context, provider, code string) (*models.User, error) {
	if m.signInWithOAuthFn != nil {
		return m.signInWithOAuthFn(provider, code)
	}
	return confirmedUser("oauth@example.com"), nil
}

type mockAuditService struct {
	actions []string
}

func (m *mockAuditService) Log(_ string, action models.AuditAction, resourceType, _, _ string, _ map[string]interface{}) {
	m.actions = append(m.actions, string(action)+" "+resourceType)
}

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
	config.Set(&config.Config{JWTSecret: "handler-test-secret", JWTExpirationDur: time.Hour})
}

func confirmedUser(email string) *models.User {
	now := time.Now()
	return &models.User{
		Base:             models.Base{ID: testUserID},
		Email:            email,
		Provider:         models.AuthProviderEmail,
		EmailConfirmedAt: &now,
	}
}

func setupAuthRouter(handler *AuthHandler) *gin.Engine {
	r := gin.New()
	r.POST("/auth/signup", handler.SignUp)
	r.POST("/auth/login", handler.Login)
	r.POST("/auth/refresh", handler.Refresh)
	r.POST("/auth/confirm", handler.Confirm)
	r.POST("/auth/recover", handler.Recover)
	r.POST("/auth/recover/verify", handler.RecoverVerify)
	r.GET("/auth/oauth/:provider", handler.OAuthStart)
	r.GET("/auth/oauth/:provider/callback", handler.OAuthCallback)
	r.POST("/auth/logout", injectUserID(testUserID), handler.Logout)
	r.PUT("/auth/password", injectUserID(testUserID), handler.UpdatePassword)
	r.GET("/profile", injectUserID(testUserID), handler.GetProfile)
	return r
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func assertErrorMessage(t *testing.T, result map[string]interface{}, message string) {
	t.Helper()
	errObj, _ := result["error"].(map[string]interface{})
	if errObj["message"] != message {
		t.Errorf("expected error message %q, got %q", message, errObj["message"])
	}
}

// --- tests ---

func TestAuthHandler_SignUp(t *testing.T) {
	t.Run("returns 201 with session when confirmed", func(t *testing.T) {
		audit := &mockAuditService{}
		handler := NewAuthHandler(&mockIdentityService{}, audit, "http://app.test")
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/auth/signup", `{"email":"test@example.com","password":"secret1"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		session, ok := result["session"].(map[string]interface{})
		if !ok || session["access_token"] == "" {
			t.Fatalf("expected a session, got %v", result["session"])
		}
		if len(audit.actions) != 1 || audit.actions[0] != "SIGN_UP user" {
			t.Errorf("expected sign-up audit entry, got %v", audit.actions)
		}
	})

	t.Run("returns null session when confirmation pending", func(t *testing.T) {
		identity := &mockIdentityService{
			signUpFn: func(email, _ string) (*models.User, error) {
				return &models.User{Base: models.Base{ID: testUserID}, Email: email}, nil
			},
		}
		handler := NewAuthHandler(identity, &mockAuditService{}, "http://app.test")
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/auth/signup", `{"email":"test@example.com","password":"secret1"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		if result["session"] != nil {
			t.Errorf("expected null session, got %v", result["session"])
		}
	})

	t.Run("returns 400 on invalid email format", func(t *testing.T) {
		handler := NewAuthHandler(&mockIdentityService{}, &mockAuditService{}, "http://app.test")
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/auth/signup", `{"email":"not-an-email","password":"secret1"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 409 on duplicate email", func(t *testing.T) {
		identity := &mockIdentityService{
			signUpFn: func(_, _ string) (*models.User, error) { return nil, apperrors.ErrDuplicateEmail },
		}
		handler := NewAuthHandler(identity, &mockAuditService{}, "http://app.test")
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/auth/signup", `{"email":"test@example.com","password":"secret1"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorMessage(t, parseJSON(t, rec), "User already registered")
	})
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("returns tokens on success", func(t *testing.T) {
		identity := &mockIdentityService{}
		handler := NewAuthHandler(identity, &mockAuditService{}, "http://app.test")
		r := setupAuthRouter(handler)

		rec := doRequest(r, "POST", "/auth/login", `{"email":"test@example.com","password":"secret1"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		refresh, _ := result["refresh_token"].(string)
		if refresh == "" || result["access_token"] == "" {
			t.Fatal("expected access and refresh tokens")
		}
		if identity.storedHashes[testUserID] != middleware.HashToken(refresh) {
			t.Error("refresh token hash should be stored")
		}
		if result["token_type"] != "bearer" {
			t.Errorf("expected bearer token type, got %v", result["token_type"])
		}
	})

	t.Run("passes through identity errors", func(t *testing.T) {
		tests := []struct {
			err    *apperrors.AppError
			status int
		}{
			{apperrors.ErrInvalidCredentials, http.StatusUnauthorized},
			{apperrors.ErrEmailNotConfirmed, http.StatusUnauthorized},
			{apperrors.RateLimited(42), http.StatusTooManyRequests},
		}
		for _, tt := range tests {
			t.Run(tt.err.Code, func(t *testing.T) {
				identity := &mockIdentityService{
					signInFn: func(_, _ string) (*models.User, error) { return nil, tt.err },
				}
				r := setupAuthRouter(NewAuthHandler(identity, &mockAuditService{}, "http://app.test"))

				rec := doRequest(r, "POST", "/auth/login", `{"email":"test@example.com","password":"x"}`)

				if rec.Code != tt.status {
					t.Fatalf("expected %d, got %d", tt.status, rec.Code)
				}
				assertErrorMessage(t, parseJSON(t, rec), tt.err.Message)
			})
		}
	})
}

func TestAuthHandler_Refresh(t *testing.T) {
	identity := &mockIdentityService{}
	r := setupAuthRouter(NewAuthHandler(identity, &mockAuditService{}, "http://app.test"))

	login := parseJSON(t, doRequest(r, "POST", "/auth/login", `{"email":"test@example.com","password":"secret1"}`))
	refresh := login["refresh_token"].(string)

	rec := doRequest(r, "POST", "/auth/refresh", `{"refresh_token":"`+refresh+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rotated := parseJSON(t, rec)["refresh_token"].(string)
	if rotated == refresh {
		t.Error("refresh token should rotate")
	}

	t.Run("old token is revoked", func(t *testing.T) {
		rec := doRequest(r, "POST", "/auth/refresh", `{"refresh_token":"`+refresh+`"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_TOKEN")
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		access := login["access_token"].(string)
		rec := doRequest(r, "POST", "/auth/refresh", `{"refresh_token":"`+access+`"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestAuthHandler_Recover(t *testing.T) {
	var gotEmail, gotRedirect string
	identity := &mockIdentityService{
		requestPasswordResetFn: func(email, redirectURL string) error {
			gotEmail, gotRedirect = email, redirectURL
			return nil
		},
	}
	r := setupAuthRouter(NewAuthHandler(identity, &mockAuditService{}, "http://app.test"))

	rec := doRequest(r, "POST", "/auth/recover", `{"email":"test@example.com","redirect_to":"http://app.test/reset-password"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotEmail != "test@example.com" || gotRedirect != "http://app.test/reset-password" {
		t.Errorf("unexpected arguments %q %q", gotEmail, gotRedirect)
	}

	rec = doRequest(r, "POST", "/auth/recover/verify", `{"token":"abc"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if parseJSON(t, rec)["access_token"] == "" {
		t.Error("expected recovery session")
	}
}

func TestAuthHandler_OAuth(t *testing.T) {
	r := setupAuthRouter(NewAuthHandler(&mockIdentityService{}, &mockAuditService{}, "http://app.test/"))

	rec := doRequest(r, "GET", "/auth/oauth/google", "")
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad redirect: %v", err)
	}
	state := location.Query().Get("state")
	if middleware.ValidateStateToken(state, "google") != nil {
		t.Fatal("redirect should carry a valid signed state")
	}

	t.Run("callback issues session", func(t *testing.T) {
		rec := doRequest(r, "GET", "/auth/oauth/google/callback?code=abc&state="+url.QueryEscape(state), "")
		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		loc := rec.Header().Get("Location")
		if !strings.HasPrefix(loc, "http://app.test/auth/callback#") || !strings.Contains(loc, "access_token=") {
			t.Errorf("unexpected callback redirect %q", loc)
		}
	})

	t.Run("callback rejects forged state", func(t *testing.T) {
		rec := doRequest(r, "GET", "/auth/oauth/google/callback?code=abc&state=forged", "")
		loc := rec.Header().Get("Location")
		if !strings.HasPrefix(loc, "http://app.test/login#error_description=") {
			t.Errorf("unexpected redirect %q", loc)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		identity := &mockIdentityService{
			oauthURLFn: func(_, _ string) (string, error) { return "", apperrors.ErrOAuthUnavailable },
		}
		r := setupAuthRouter(NewAuthHandler(identity, &mockAuditService{}, "http://app.test"))
		rec := doRequest(r, "GET", "/auth/oauth/github", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "OAUTH_UNAVAILABLE")
	})
}

func TestAuthHandler_UpdatePassword(t *testing.T) {
	t.Run("same password", func(t *testing.T) {
		identity := &mockIdentityService{
			updatePasswordFn: func(_, _ string) (*models.User, error) { return nil, apperrors.ErrSamePassword },
		}
		r := setupAuthRouter(NewAuthHandler(identity, &mockAuditService{}, "http://app.test"))

		rec := doRequest(r, "PUT", "/auth/password", `{"password":"secret1"}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "SAME_PASSWORD")
	})

	t.Run("success is audited", func(t *testing.T) {
		audit := &mockAuditService{}
		r := setupAuthRouter(NewAuthHandler(&mockIdentityService{}, audit, "http://app.test"))

		rec := doRequest(r, "PUT", "/auth/password", `{"password":"new-secret"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(audit.actions) != 1 || audit.actions[0] != "UPDATE_PASSWORD user" {
			t.Errorf("unexpected audit entries %v", audit.actions)
		}
	})
}

func TestAuthHandler_Profile(t *testing.T) {
	var signedOut string
	identity := &mockIdentityService{
		signOutFn: func(userID string) error { signedOut = userID; return nil },
	}
	r := setupAuthRouter(NewAuthHandler(identity, &mockAuditService{}, "http://app.test"))

	rec := doRequest(r, "GET", "/profile", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	user := parseJSON(t, rec)["user"].(map[string]interface{})
	if user["id"] != testUserID {
		t.Errorf("unexpected user %v", user)
	}

	rec = doRequest(r, "POST", "/auth/logout", "")
	if rec.Code != http.StatusOK || signedOut != testUserID {
		t.Errorf("logout failed: %d %q", rec.Code, signedOut)
	}
}

func TestAuthHandler_RequiresUser(t *testing.T) {
	handler := NewAuthHandler(&mockIdentityService{}, &mockAuditService{}, "http://app.test")
	r := gin.New()
	r.GET("/profile", handler.GetProfile)

	rec := doRequest(r, "GET", "/profile", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	assertErrorCode(t, parseJSON(t, rec), "UNAUTHORIZED")
}
