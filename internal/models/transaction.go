package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"solconta/internal/calendar"
)

// MaxAmount is the first amount the NUMERIC(12,2) column cannot hold.
var MaxAmount = decimal.New(1, 10)

// TransactionType represents the direction of a transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// Transaction is a single dated income or expense. Amount is always positive;
// the direction is carried by Type.
type Transaction struct {
	Base
	UserID          string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Type            TransactionType `gorm:"not null" json:"type"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Description     string          `gorm:"not null" json:"description"`
	CategoryID      *string         `gorm:"type:uuid;index" json:"category_id"`
	TransactionDate calendar.Date   `gorm:"not null;index" json:"transaction_date"`
	Notes           *string         `json:"notes"`

	// Category is the joined category row. It is absent when CategoryID is
	// nil and also when the referenced category no longer exists.
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// Categorized reports whether the row carries a category reference that
// resolved to an existing category.
func (t *Transaction) Categorized() bool {
	return t.CategoryID != nil && t.Category != nil
}

// CheckShape validates a row received from the backend before it is handed
// to the metrics engine.
func (t *Transaction) CheckShape() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("transaction without id")
	case !t.Type.Valid():
		return fmt.Errorf("transaction %s: unknown type %q", t.ID, t.Type)
	case !t.Amount.IsPositive():
		return fmt.Errorf("transaction %s: non-positive amount %s", t.ID, t.Amount)
	case t.TransactionDate.IsZero():
		return fmt.Errorf("transaction %s: missing transaction_date", t.ID)
	}
	if t.Category != nil {
		if t.CategoryID == nil || *t.CategoryID != t.Category.ID {
			return fmt.Errorf("transaction %s: joined category does not match category_id", t.ID)
		}
	}
	return nil
}

// TransactionInput is the payload of the transaction form, used both for
// inserts and for full-replacement edits.
type TransactionInput struct {
	Type            TransactionType `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	CategoryID      *string         `json:"category_id"`
	TransactionDate calendar.Date   `json:"transaction_date"`
	Notes           *string         `json:"notes"`
}

// Normalize trims text fields and maps empty optional fields to nil.
func (in *TransactionInput) Normalize() {
	in.Description = strings.TrimSpace(in.Description)
	if in.CategoryID != nil && strings.TrimSpace(*in.CategoryID) == "" {
		in.CategoryID = nil
	}
	if in.Notes != nil {
		notes := strings.TrimSpace(*in.Notes)
		if notes == "" {
			in.Notes = nil
		} else {
			in.Notes = &notes
		}
	}
}

// Validate checks the form rules. It never touches the network.
func (in TransactionInput) Validate() error {
	if !in.Type.Valid() {
		return &ValidationError{Field: "type", Message: "Tipo de movimiento inválido"}
	}
	if !in.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "El monto debe ser mayor a 0"}
	}
	if !in.Amount.Equal(in.Amount.Truncate(2)) {
		return &ValidationError{Field: "amount", Message: "El monto admite hasta 2 decimales"}
	}
	if in.Amount.GreaterThanOrEqual(MaxAmount) {
		return &ValidationError{Field: "amount", Message: "El monto es demasiado grande"}
	}
	if strings.TrimSpace(in.Description) == "" {
		return &ValidationError{Field: "description", Message: "La descripción es obligatoria"}
	}
	if in.TransactionDate.IsZero() {
		return &ValidationError{Field: "transaction_date", Message: "La fecha es obligatoria"}
	}
	return nil
}

// Apply overwrites every user-editable field of t with the input.
func (in TransactionInput) Apply(t *Transaction) {
	t.Type = in.Type
	t.Amount = in.Amount
	t.Description = in.Description
	t.CategoryID = in.CategoryID
	t.TransactionDate = in.TransactionDate
	t.Notes = in.Notes
	t.Category = nil
}
