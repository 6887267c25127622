package models

import (
	"fmt"
	"strings"
)

// CategoryType represents the type of category
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// DefaultCategoryColor is used when a category is created without a color.
const DefaultCategoryColor = "#2563eb"

// Valid reports whether t is a known category type.
func (t CategoryType) Valid() bool {
	return t == CategoryTypeIncome || t == CategoryTypeExpense
}

// Category is a user-defined tag. A category belongs to exactly one type and
// only ever applies to transactions of that type.
type Category struct {
	Base
	UserID string       `gorm:"type:uuid;not null;index;uniqueIndex:idx_categories_user_type_name" json:"user_id"`
	Name   string       `gorm:"not null;uniqueIndex:idx_categories_user_type_name" json:"name"`
	Type   CategoryType `gorm:"not null;uniqueIndex:idx_categories_user_type_name" json:"type"`
	Color  string       `gorm:"not null" json:"color"`
}

// CheckShape validates a category row received from the backend.
func (c *Category) CheckShape() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("category without id")
	case !c.Type.Valid():
		return fmt.Errorf("category %s: unknown type %q", c.ID, c.Type)
	case strings.TrimSpace(c.Name) == "":
		return fmt.Errorf("category %s: empty name", c.ID)
	}
	return nil
}

// CategoryInput is the payload of the "new category" form.
type CategoryInput struct {
	Name  string       `json:"name"`
	Type  CategoryType `json:"type"`
	Color string       `json:"color"`
}

// Normalize trims the name and fills in the default color.
func (in *CategoryInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	if in.Color == "" {
		in.Color = DefaultCategoryColor
	}
}

// Validate checks the input after Normalize.
func (in CategoryInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &ValidationError{Field: "name", Message: "El nombre es obligatorio"}
	}
	if !in.Type.Valid() {
		return &ValidationError{Field: "type", Message: "Tipo de categoría inválido"}
	}
	return nil
}
