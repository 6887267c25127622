package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type sample struct {
	Type     string `validate:"omitempty,transaction_type"`
	Category string `validate:"omitempty,category_type"`
	Color    string `validate:"omitempty,hex_color"`
	Date     string `validate:"omitempty,calendar_date"`
}

func TestCustomValidators(t *testing.T) {
	v := validator.New()
	RegisterOn(v)

	tests := []struct {
		name  string
		input sample
		valid bool
	}{
		{"income", sample{Type: "income"}, true},
		{"expense", sample{Type: "expense"}, true},
		{"transfer rejected", sample{Type: "transfer"}, false},
		{"category expense", sample{Category: "expense"}, true},
		{"category unknown", sample{Category: "savings"}, false},
		{"short hex", sample{Color: "#fff"}, true},
		{"long hex", sample{Color: "#2563eb"}, true},
		{"named color", sample{Color: "blue"}, false},
		{"date", sample{Date: "2026-02-28"}, true},
		{"timestamp", sample{Date: "2026-02-28T10:00:00Z"}, false},
		{"impossible date", sample{Date: "2026-02-30"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.input)
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
