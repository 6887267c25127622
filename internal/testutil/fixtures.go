package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"solconta/internal/calendar"
	"solconta/internal/models"
)

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a confirmed email user with a unique address.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a confirmed email user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	confirmedAt := time.Now()
	user := &models.User{
		Email:            email,
		Password:         string(hash),
		Provider:         models.AuthProviderEmail,
		EmailConfirmedAt: &confirmedAt,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCategory creates a category of the given type with a unique name.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   fmt.Sprintf("Category %d", nextID()),
		Type:   categoryType,
		Color:  models.DefaultCategoryColor,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// TransactionOption customizes a fixture transaction.
type TransactionOption func(*models.Transaction)

// WithCategory attaches the transaction to categoryID.
func WithCategory(categoryID string) TransactionOption {
	return func(tx *models.Transaction) {
		tx.CategoryID = &categoryID
	}
}

// OnDate sets the transaction date from a YYYY-MM-DD string.
func OnDate(date string) TransactionOption {
	return func(tx *models.Transaction) {
		tx.TransactionDate = calendar.MustParse(date)
	}
}

// WithDescription overrides the generated description.
func WithDescription(description string) TransactionOption {
	return func(tx *models.Transaction) {
		tx.Description = description
	}
}

// CreateTestTransaction creates a transaction dated today (UTC) unless an
// option says otherwise. amount is a decimal string such as "150.50".
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID string, txType models.TransactionType, amount string, opts ...TransactionOption) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:          userID,
		Type:            txType,
		Amount:          decimal.RequireFromString(amount),
		Description:     fmt.Sprintf("Transaction %d", nextID()),
		TransactionDate: calendar.Today(time.UTC),
	}
	for _, opt := range opts {
		opt(tx)
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}
