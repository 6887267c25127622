package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "solconta/internal/errors"
	"solconta/internal/logger"
	"solconta/internal/mailer"
	"solconta/internal/models"
	"solconta/internal/oauth"
	"solconta/internal/ratelimit"
)

const (
	// MinPasswordLength is the shortest password accepted.
	MinPasswordLength = 6

	confirmationTTL = 24 * time.Hour
	recoveryTTL     = time.Hour
)

// IdentityOptions configures the identity service.
type IdentityOptions struct {
	// AppURL is the public URL of the front end; email links point at it.
	AppURL string
	// AutoConfirm skips email confirmation on sign-up.
	AutoConfirm bool
	Mailer      mailer.Sender
	Providers   oauth.Registry
	// SignInLimiter throttles password attempts per email.
	SignInLimiter *ratelimit.Limiter
	// EmailLimiter throttles outgoing emails per address.
	EmailLimiter *ratelimit.Limiter
	Now          func() time.Time
}

// identityService handles sign-up, sign-in and account recovery.
type identityService struct {
	db   *gorm.DB
	opts IdentityOptions
}

// NewIdentityService creates a new IdentityServicer.
func NewIdentityService(db *gorm.DB, opts IdentityOptions) IdentityServicer {
	if opts.Mailer == nil {
		opts.Mailer = &mailer.LogSender{}
	}
	if opts.Providers == nil {
		opts.Providers = oauth.Registry{}
	}
	if opts.SignInLimiter == nil {
		opts.SignInLimiter = ratelimit.New(5, 5)
	}
	if opts.EmailLimiter == nil {
		opts.EmailLimiter = ratelimit.New(1, 1)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.AppURL = strings.TrimRight(opts.AppURL, "/")
	return &identityService{db: db, opts: opts}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// newToken returns a random URL-safe token and its hash.
func newToken() (string, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	token := hex.EncodeToString(b)
	return token, hashToken(token), nil
}

func (s *identityService) throttle(limiter *ratelimit.Limiter, key string) error {
	if ok, wait := limiter.Allow(key); !ok {
		return apperrors.RateLimited(ratelimit.RetrySeconds(wait))
	}
	return nil
}

// link builds an app URL carrying a token. base is used when it points at
// the app itself; anything else falls back to path on AppURL.
func (s *identityService) link(base, path, token string) string {
	if base == "" || !strings.HasPrefix(base, s.opts.AppURL) {
		base = s.opts.AppURL + path
	}
	u, err := url.Parse(base)
	if err != nil {
		u, _ = url.Parse(s.opts.AppURL + path)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *identityService) findByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// SignUp registers a new email user. Unless auto-confirm is on, the user
// gets a confirmation link and cannot sign in until it is followed.
func (s *identityService) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unable to validate email address: invalid format")
	}
	if len(password) < MinPasswordLength {
		return nil, apperrors.ErrWeakPassword
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateEmail
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now := s.opts.Now()
	user := &models.User{
		Email:    email,
		Password: string(hashedPassword),
		Provider: models.AuthProviderEmail,
	}

	var token string
	if s.opts.AutoConfirm {
		user.EmailConfirmedAt = &now
	} else {
		var tokenHash string
		if token, tokenHash, err = newToken(); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		user.ConfirmationTokenHash = tokenHash
		user.ConfirmationSentAt = &now
	}

	if err := s.db.Create(user).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if token != "" {
		msg := mailer.Confirmation(email, s.link("", "/auth/confirm", token))
		if err := s.opts.Mailer.Send(ctx, msg); err != nil {
			return nil, apperrors.Wrap(apperrors.WithMessage(apperrors.ErrInternalServer, "Error sending confirmation email"), err)
		}
	}
	return user, nil
}

// ConfirmEmail marks the owner of a confirmation token as confirmed.
func (s *identityService) ConfirmEmail(token string) (*models.User, error) {
	if token == "" {
		return nil, apperrors.ErrInvalidToken
	}

	var user models.User
	if err := s.db.Where("confirmation_token_hash = ?", hashToken(token)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now := s.opts.Now()
	if user.ConfirmationSentAt == nil || now.Sub(*user.ConfirmationSentAt) > confirmationTTL {
		return nil, apperrors.ErrInvalidToken
	}

	user.EmailConfirmedAt = &now
	user.ConfirmationTokenHash = ""
	if err := s.db.Save(&user).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// SignIn checks an email and password. Attempts are rate limited per email.
func (s *identityService) SignIn(email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if err := s.throttle(s.opts.SignInLimiter, "signin:"+email); err != nil {
		return nil, err
	}

	user, err := s.findByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.Confirmed() {
		return nil, apperrors.ErrEmailNotConfirmed
	}

	now := s.opts.Now()
	user.LastSignInAt = &now
	if err := s.db.Model(user).Update("last_sign_in_at", now).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (s *identityService) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// StoreRefreshTokenHash saves the SHA-256 hash of the current refresh token.
func (s *identityService) StoreRefreshTokenHash(userID, tokenHash string) error {
	result := s.db.Model(&models.User{}).Where("id = ?", userID).Update("refresh_token_hash", tokenHash)
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// VerifyRefreshToken returns the user when tokenHash is the hash of the
// refresh token last issued to them.
func (s *identityService) VerifyRefreshToken(userID, tokenHash string) (*models.User, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, err
	}
	if user.RefreshTokenHash == "" || user.RefreshTokenHash != tokenHash {
		return nil, apperrors.ErrInvalidToken
	}
	return user, nil
}

// SignOut revokes the user's refresh token.
func (s *identityService) SignOut(userID string) error {
	return s.StoreRefreshTokenHash(userID, "")
}

// RequestPasswordReset mails a recovery link. The result never reveals
// whether an account exists for email.
func (s *identityService) RequestPasswordReset(ctx context.Context, email, redirectURL string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Unable to validate email address: invalid format")
	}
	if err := s.throttle(s.opts.EmailLimiter, "email:"+email); err != nil {
		return err
	}

	user, err := s.findByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil
		}
		return err
	}

	token, tokenHash, err := newToken()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	now := s.opts.Now()
	if err := s.db.Model(user).Updates(map[string]interface{}{
		"recovery_token_hash": tokenHash,
		"recovery_sent_at":    now,
	}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	msg := mailer.Recovery(email, s.link(redirectURL, "/reset-password", token))
	if err := s.opts.Mailer.Send(ctx, msg); err != nil {
		logger.Get().Errorw("failed to send recovery email", "error", err, "user_id", user.ID)
		return apperrors.Wrap(apperrors.WithMessage(apperrors.ErrInternalServer, "Error sending recovery email"), err)
	}
	return nil
}

// RecoverWithToken consumes a recovery token and returns its owner, who is
// then signed in to choose a new password.
func (s *identityService) RecoverWithToken(token string) (*models.User, error) {
	if token == "" {
		return nil, apperrors.ErrInvalidToken
	}

	var user models.User
	if err := s.db.Where("recovery_token_hash = ?", hashToken(token)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now := s.opts.Now()
	if user.RecoverySentAt == nil || now.Sub(*user.RecoverySentAt) > recoveryTTL {
		return nil, apperrors.ErrInvalidToken
	}

	// Following the link proves ownership of the address.
	if user.EmailConfirmedAt == nil {
		user.EmailConfirmedAt = &now
	}
	user.RecoveryTokenHash = ""
	user.LastSignInAt = &now
	if err := s.db.Save(&user).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// UpdatePassword sets a new password for a signed-in user.
func (s *identityService) UpdatePassword(userID, password string) (*models.User, error) {
	if len(password) < MinPasswordLength {
		return nil, apperrors.ErrWeakPassword
	}

	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user.Password != "" && bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil {
		return nil, apperrors.ErrSamePassword
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	user.Password = string(hashedPassword)
	if err := s.db.Model(user).Update("password", user.Password).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, nil
}

func (s *identityService) provider(name string) (oauth.Provider, error) {
	p, ok := s.opts.Providers.Get(name)
	if !ok {
		return nil, apperrors.ErrOAuthUnavailable
	}
	return p, nil
}

// OAuthURL returns the consent page URL of provider.
func (s *identityService) OAuthURL(provider, state string) (string, error) {
	p, err := s.provider(provider)
	if err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

// SignInWithOAuth exchanges an authorization code and signs in the matching
// user, creating it on first use.
func (s *identityService) SignInWithOAuth(ctx context.Context, provider, code string) (*models.User, error) {
	p, err := s.provider(provider)
	if err != nil {
		return nil, err
	}

	info, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.WithMessage(apperrors.ErrUnauthorized, "OAuth sign-in failed"), err)
	}

	email := normalizeEmail(info.Email)
	now := s.opts.Now()

	user, err := s.findByEmail(email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		user = &models.User{
			Email:        email,
			Provider:     models.AuthProvider(p.Name()),
			LastSignInAt: &now,
		}
		if info.EmailVerified {
			user.EmailConfirmedAt = &now
		}
		if err := s.db.Create(user).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	case err != nil:
		return nil, err
	default:
		if user.EmailConfirmedAt == nil && info.EmailVerified {
			user.EmailConfirmedAt = &now
		}
		user.LastSignInAt = &now
		if err := s.db.Save(user).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	if !user.Confirmed() {
		return nil, apperrors.ErrEmailNotConfirmed
	}
	return user, nil
}
