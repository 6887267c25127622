package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "solconta/internal/errors"
	"solconta/internal/models"
	"solconta/internal/pagination"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// transactionService handles transaction-related business logic.
type transactionService struct {
	db *gorm.DB
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB) TransactionServicer {
	return &transactionService{db: db}
}

// filtered builds the scoped, filtered base query for a user's transactions.
func (s *transactionService) filtered(userID string, filter TransactionFilter) (*gorm.DB, error) {
	query := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)

	if filter.Type != nil {
		if !filter.Type.Valid() {
			return nil, apperrors.ErrInvalidTransactionType
		}
		query = query.Where("type = ?", *filter.Type)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		query = query.Where(`LOWER(description) LIKE ? ESCAPE '\'`, pattern)
	}
	if filter.From != nil && !filter.From.IsZero() {
		query = query.Where("transaction_date >= ?", *filter.From)
	}
	if filter.To != nil && !filter.To.IsZero() {
		query = query.Where("transaction_date <= ?", *filter.To)
	}
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	return query, nil
}

// ListTransactions returns every matching transaction of the user, newest
// first, with the category joined.
func (s *transactionService) ListTransactions(userID string, filter TransactionFilter) ([]models.Transaction, error) {
	query, err := s.filtered(userID, filter)
	if err != nil {
		return nil, err
	}

	transactions := make([]models.Transaction, 0)
	if err := query.Preload("Category").
		Order("transaction_date DESC, created_at DESC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return transactions, nil
}

// PageTransactions is ListTransactions split into pages.
func (s *transactionService) PageTransactions(userID string, filter TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	query, err := s.filtered(userID, filter)
	if err != nil {
		return nil, err
	}

	var totalItems int64
	if err := query.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := query.Preload("Category").
		Order("transaction_date DESC, created_at DESC").
		Scopes(pagination.Paginate(page)).
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetTransaction retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransaction(userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Preload("Category").
		Where("id = ? AND user_id = ?", transactionID, userID).
		First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// checkInput normalizes and validates the form, and makes sure a referenced
// category belongs to the user and has the same type as the transaction.
func (s *transactionService) checkInput(userID string, input *models.TransactionInput) error {
	input.Normalize()
	if err := input.Validate(); err != nil {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	if input.CategoryID == nil {
		return nil
	}

	var category models.Category
	if err := s.db.Where("id = ? AND user_id = ?", *input.CategoryID, userID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrCategoryNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if string(category.Type) != string(input.Type) {
		return apperrors.ErrCategoryTypeMismatch
	}
	return nil
}

// CreateTransaction inserts a new transaction.
func (s *transactionService) CreateTransaction(userID string, input models.TransactionInput) (*models.Transaction, error) {
	if err := s.checkInput(userID, &input); err != nil {
		return nil, err
	}

	transaction := &models.Transaction{UserID: userID}
	input.Apply(transaction)
	if err := s.db.Create(transaction).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetTransaction(userID, transaction.ID)
}

// UpdateTransaction replaces every editable field of a transaction.
func (s *transactionService) UpdateTransaction(userID, transactionID string, input models.TransactionInput) (*models.Transaction, error) {
	transaction, err := s.GetTransaction(userID, transactionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkInput(userID, &input); err != nil {
		return nil, err
	}

	input.Apply(transaction)
	if err := s.db.Omit("Category").Save(transaction).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetTransaction(userID, transactionID)
}

// DeleteTransaction permanently removes a transaction.
func (s *transactionService) DeleteTransaction(userID, transactionID string) error {
	result := s.db.Where("id = ? AND user_id = ?", transactionID, userID).Delete(&models.Transaction{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrTransactionNotFound
	}
	return nil
}
