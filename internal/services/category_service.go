package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "solconta/internal/errors"
	"solconta/internal/models"
)

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// ListCategories returns the user's categories ordered by name, optionally
// restricted to one type.
func (s *categoryService) ListCategories(userID string, categoryType *models.CategoryType) ([]models.Category, error) {
	query := s.db.Where("user_id = ?", userID)
	if categoryType != nil {
		if !categoryType.Valid() {
			return nil, apperrors.ErrInvalidCategoryType
		}
		query = query.Where("type = ?", *categoryType)
	}

	categories := make([]models.Category, 0)
	if err := query.Order("name ASC").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return categories, nil
}

// GetCategory retrieves a category by ID for a specific user
func (s *categoryService) GetCategory(userID, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ? AND user_id = ?", categoryID, userID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// CreateCategory creates a new category. Names are unique per user and type.
func (s *categoryService) CreateCategory(userID string, input models.CategoryInput) (*models.Category, error) {
	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}

	var count int64
	if err := s.db.Model(&models.Category{}).
		Where("user_id = ? AND type = ? AND name = ?", userID, input.Type, input.Name).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateCategory
	}

	category := &models.Category{
		UserID: userID,
		Name:   input.Name,
		Type:   input.Type,
		Color:  input.Color,
	}
	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return category, nil
}

// DeleteCategory detaches the category from every transaction of the user
// and then removes it. Both steps run in one database transaction.
func (s *categoryService) DeleteCategory(userID, categoryID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var category models.Category
		if err := tx.Where("id = ? AND user_id = ?", categoryID, userID).First(&category).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrCategoryNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if err := tx.Model(&models.Transaction{}).
			Where("user_id = ? AND category_id = ?", userID, categoryID).
			Update("category_id", nil).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if err := tx.Delete(&category).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}
