package services

import (
	"context"

	"solconta/internal/calendar"
	"solconta/internal/metrics"
	"solconta/internal/models"
	"solconta/internal/pagination"
)

// IdentityServicer defines the contract for sign-up, sign-in and the
// email-driven account flows.
type IdentityServicer interface {
	SignUp(ctx context.Context, email, password string) (*models.User, error)
	ConfirmEmail(token string) (*models.User, error)
	SignIn(email, password string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	VerifyRefreshToken(userID, tokenHash string) (*models.User, error)
	SignOut(userID string) error
	RequestPasswordReset(ctx context.Context, email, redirectURL string) error
	RecoverWithToken(token string) (*models.User, error)
	UpdatePassword(userID, password string) (*models.User, error)
	OAuthURL(provider, state string) (string, error)
	SignInWithOAuth(ctx context.Context, provider, code string) (*models.User, error)
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	ListCategories(userID string, categoryType *models.CategoryType) ([]models.Category, error)
	GetCategory(userID, categoryID string) (*models.Category, error)
	CreateCategory(userID string, input models.CategoryInput) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	Type       *models.TransactionType
	Search     string
	From       *calendar.Date
	To         *calendar.Date
	CategoryID *string
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	ListTransactions(userID string, filter TransactionFilter) ([]models.Transaction, error)
	PageTransactions(userID string, filter TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
	GetTransaction(userID, transactionID string) (*models.Transaction, error)
	CreateTransaction(userID string, input models.TransactionInput) (*models.Transaction, error)
	UpdateTransaction(userID, transactionID string, input models.TransactionInput) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID string) error
}

// DashboardServicer defines the contract for the dashboard figures.
type DashboardServicer interface {
	GetDashboard(userID string) (*metrics.Dashboard, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID string, action models.AuditAction, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
