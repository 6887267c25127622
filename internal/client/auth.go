package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"solconta/internal/logger"
	"solconta/internal/models"
	"solconta/internal/session"
)

// MinPasswordLength mirrors the server's password policy.
const MinPasswordLength = 6

var validate = validator.New()

type userWire struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Provider string `json:"provider"`
}

func (u userWire) toUser() session.User {
	return session.User{ID: u.ID, Email: u.Email, Provider: u.Provider}
}

type sessionWire struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresAt    int64    `json:"expires_at"`
	User         userWire `json:"user"`
}

func (s sessionWire) toSession() *session.Session {
	return &session.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		ExpiresAt:    s.ExpiresAt,
		User:         s.User.toUser(),
	}
}

// Auth drives the identity lifecycle. It is the only writer of the
// client's session cell.
type Auth struct {
	client *Client
	store  SessionStore
}

// NewAuth wires the identity lifecycle to c. Expired sessions are refreshed
// transparently by c from then on.
func NewAuth(c *Client, store SessionStore) *Auth {
	if store == nil {
		store = &MemoryStore{}
	}
	a := &Auth{client: c, store: store}
	c.refresh = a.refresh
	return a
}

// publish persists s and makes it the current session.
func (a *Auth) publish(event session.Event, s *session.Session) {
	if s == nil {
		if err := a.store.Clear(); err != nil {
			logger.Get().Warnw("failed to clear stored session", "error", err)
		}
	} else if err := a.store.Save(s); err != nil {
		logger.Get().Warnw("failed to store session", "error", err)
	}
	a.client.cell.Set(event, s)
}

// Restore loads the persisted session, refreshes it when expired and
// publishes INITIAL_SESSION. It publishes even when nothing could be
// restored, so waiters on the cell are always released.
func (a *Auth) Restore(ctx context.Context) error {
	stored, err := a.store.Load()
	if err != nil {
		a.client.cell.Set(session.EventInitialSession, nil)
		return err
	}
	if stored == nil || stored.AccessToken == "" {
		a.client.cell.Set(session.EventInitialSession, nil)
		return nil
	}

	if stored.Expired(a.client.now()) {
		renewed, err := a.exchangeRefreshToken(ctx, stored.RefreshToken)
		var apiErr *APIError
		switch {
		case errors.As(err, &apiErr):
			logger.Get().Infow("stored session could not be refreshed", "code", apiErr.Code)
			a.publish(session.EventInitialSession, nil)
			return nil
		case err != nil:
			// Offline: keep the stored session, the next call will retry.
			a.client.cell.Set(session.EventInitialSession, stored)
			return err
		}
		stored = renewed
		if err := a.store.Save(stored); err != nil {
			logger.Get().Warnw("failed to store session", "error", err)
		}
	}

	a.client.cell.Set(session.EventInitialSession, stored)
	return nil
}

func checkCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return &models.ValidationError{Field: "email", Message: "Ingresa tu correo y contraseña."}
	}
	if err := validate.Var(strings.TrimSpace(email), "email"); err != nil {
		return &models.ValidationError{Field: "email", Message: "El correo electrónico no es válido."}
	}
	return nil
}

// SignIn signs in with email and password.
func (a *Auth) SignIn(ctx context.Context, email, password string) OpResult {
	if err := checkCredentials(email, password); err != nil {
		return Fail(err)
	}

	var resp sessionWire
	body := map[string]string{"email": strings.TrimSpace(email), "password": password}
	if err := a.client.do(ctx, http.MethodPost, "/auth/login", nil, body, &resp, ""); err != nil {
		return Fail(err)
	}
	a.publish(session.EventSignedIn, resp.toSession())
	return Ok()
}

// SignUp registers a new account. When the server requires email
// confirmation no session is issued and needsConfirmation is true.
func (a *Auth) SignUp(ctx context.Context, email, password string) (res OpResult, needsConfirmation bool) {
	if err := checkCredentials(email, password); err != nil {
		return Fail(err), false
	}
	if len(password) < MinPasswordLength {
		return Fail(&models.ValidationError{Field: "password", Message: msgPasswordTooShort}), false
	}

	var resp struct {
		User    userWire     `json:"user"`
		Session *sessionWire `json:"session"`
	}
	body := map[string]string{"email": strings.TrimSpace(email), "password": password}
	if err := a.client.do(ctx, http.MethodPost, "/auth/signup", nil, body, &resp, ""); err != nil {
		return Fail(err), false
	}
	if resp.Session == nil {
		return Ok(), true
	}
	a.publish(session.EventSignedIn, resp.Session.toSession())
	return Ok(), false
}

// ConfirmEmail exchanges an emailed confirmation token for a session.
func (a *Auth) ConfirmEmail(ctx context.Context, token string) OpResult {
	return a.tokenSignIn(ctx, "/auth/confirm", token, session.EventSignedIn)
}

// RecoverWithToken exchanges an emailed recovery token for a session in
// which a new password can be set.
func (a *Auth) RecoverWithToken(ctx context.Context, token string) OpResult {
	return a.tokenSignIn(ctx, "/auth/recover/verify", token, session.EventPasswordRecovery)
}

func (a *Auth) tokenSignIn(ctx context.Context, path, token string, event session.Event) OpResult {
	token = strings.TrimSpace(token)
	if token == "" {
		return Fail(&models.ValidationError{Field: "token", Message: "El enlace no es válido."})
	}

	var resp sessionWire
	if err := a.client.do(ctx, http.MethodPost, path, nil, map[string]string{"token": token}, &resp, ""); err != nil {
		return Fail(err)
	}
	a.publish(event, resp.toSession())
	return Ok()
}

// SignOut revokes the session on the server when possible and always clears
// it locally.
func (a *Auth) SignOut(ctx context.Context) OpResult {
	if s := a.client.cell.Current(); s != nil {
		if err := a.client.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil, s.AccessToken); err != nil {
			logger.Get().Warnw("server sign-out failed", "error", err)
		}
	}
	a.publish(session.EventSignedOut, nil)
	return Ok()
}

// RequestPasswordReset emails a recovery link. The result does not reveal
// whether the account exists.
func (a *Auth) RequestPasswordReset(ctx context.Context, email, redirectTo string) OpResult {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return Fail(&models.ValidationError{Field: "email", Message: "El correo electrónico no es válido."})
	}

	body := map[string]string{"email": email}
	if redirectTo != "" {
		body["redirect_to"] = redirectTo
	}
	return Fail(a.client.do(ctx, http.MethodPost, "/auth/recover", nil, body, nil, ""))
}

const (
	msgPasswordTooShort = "La contraseña debe tener al menos 6 caracteres."
	msgPasswordMismatch = "Las contraseñas no coinciden."
)

// UpdatePassword sets a new password for the signed-in user. confirm must
// repeat password.
func (a *Auth) UpdatePassword(ctx context.Context, password, confirm string) OpResult {
	if len(password) < MinPasswordLength {
		return Fail(&models.ValidationError{Field: "password", Message: msgPasswordTooShort})
	}
	if password != confirm {
		return Fail(&models.ValidationError{Field: "confirm", Message: msgPasswordMismatch})
	}

	var resp struct {
		User userWire `json:"user"`
	}
	body := map[string]string{"password": password}
	if err := a.client.call(ctx, http.MethodPut, "/auth/password", nil, body, &resp); err != nil {
		return Fail(err)
	}

	if s := a.client.cell.Current(); s != nil {
		s.User = resp.User.toUser()
		a.publish(session.EventUserUpdated, s)
	}
	return Ok()
}

// OAuthURL is where a browser starts sign-in with provider.
func (a *Auth) OAuthURL(provider string) string {
	return a.client.baseURL + apiPrefix + "/auth/oauth/" + url.PathEscape(provider)
}

// CompleteOAuth finishes an OAuth sign-in from the URL the browser was sent
// back to. The session travels in the URL fragment.
func (a *Auth) CompleteOAuth(ctx context.Context, callbackURL string) OpResult {
	u, err := url.Parse(strings.TrimSpace(callbackURL))
	if err != nil {
		return Fail(fmt.Errorf("invalid callback URL: %w", err))
	}
	fragment, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return Fail(fmt.Errorf("invalid callback URL: %w", err))
	}
	if desc := fragment.Get("error_description"); desc != "" {
		return OpResult{Error: Translate(desc)}
	}

	accessToken := fragment.Get("access_token")
	if accessToken == "" {
		return OpResult{Error: "No se pudo iniciar sesión con el proveedor."}
	}
	expiresAt, _ := strconv.ParseInt(fragment.Get("expires_at"), 10, 64)

	var profile struct {
		User userWire `json:"user"`
	}
	if err := a.client.do(ctx, http.MethodGet, "/profile", nil, nil, &profile, accessToken); err != nil {
		return Fail(err)
	}

	tokenType := fragment.Get("token_type")
	if tokenType == "" {
		tokenType = "bearer"
	}
	a.publish(session.EventSignedIn, &session.Session{
		AccessToken:  accessToken,
		RefreshToken: fragment.Get("refresh_token"),
		TokenType:    tokenType,
		ExpiresAt:    expiresAt,
		User:         profile.User.toUser(),
	})
	return Ok()
}

// Refresh rotates the current session now.
func (a *Auth) Refresh(ctx context.Context) OpResult {
	a.client.refreshMu.Lock()
	defer a.client.refreshMu.Unlock()
	return Fail(a.refresh(ctx))
}

// refresh rotates the current session. A rejected refresh token signs the
// user out.
func (a *Auth) refresh(ctx context.Context) error {
	current := a.client.cell.Current()
	if current == nil {
		return ErrNoSession
	}

	renewed, err := a.exchangeRefreshToken(ctx, current.RefreshToken)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		logger.Get().Infow("session refresh rejected", "code", apiErr.Code)
		a.publish(session.EventSignedOut, nil)
		return ErrNoSession
	}
	if err != nil {
		return err
	}
	a.publish(session.EventTokenRefreshed, renewed)
	return nil
}

func (a *Auth) exchangeRefreshToken(ctx context.Context, refreshToken string) (*session.Session, error) {
	var resp sessionWire
	body := map[string]string{"refresh_token": refreshToken}
	if err := a.client.do(ctx, http.MethodPost, "/auth/refresh", nil, body, &resp, ""); err != nil {
		return nil, err
	}
	return resp.toSession(), nil
}

// PasswordStrength rates a candidate password from 0 (empty) to 4 and
// returns the label shown next to the meter.
func PasswordStrength(password string) (int, string) {
	n := len([]rune(password))
	switch {
	case n == 0:
		return 0, ""
	case n < MinPasswordLength:
		return 1, "Débil"
	case n < 8:
		return 2, "Regular"
	case n < 10:
		return 3, "Buena"
	default:
		return 4, "Fuerte"
	}
}
