package main

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"solconta/internal/calendar"
	"solconta/internal/format"
	"solconta/internal/models"
)

// prompter reads answers line by line from the command's input.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}
}

// line returns value when it is set and otherwise asks for it.
func (p *prompter) line(label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprint(p.out, label+": ")
	answer, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// tokenArg accepts either a bare token or the emailed link carrying it.
func tokenArg(arg string) string {
	arg = strings.TrimSpace(arg)
	if u, err := url.Parse(arg); err == nil && u.Scheme != "" {
		if token := u.Query().Get("token"); token != "" {
			return token
		}
	}
	return arg
}

func strengthMeter(score int) string {
	return strings.Repeat("█", score) + subtleStyle.Render(strings.Repeat("░", 4-score))
}

// parseAmount accepts "12.50" and the comma decimal separator "12,50". An
// empty amount is zero and is rejected by the form validation.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "S/"))
	if s == "" {
		return decimal.Zero, nil
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("monto inválido %q", s)
	}
	return amount, nil
}

// parseDate reads a YYYY-MM-DD date. "hoy" and "ayer" are relative to today.
func parseDate(s string, today calendar.Date) (calendar.Date, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hoy":
		return today, nil
	case "ayer":
		return today.AddDays(-1), nil
	}
	d, err := calendar.Parse(strings.TrimSpace(s))
	if err != nil {
		return calendar.Date{}, fmt.Errorf("fecha inválida %q, usa AAAA-MM-DD", s)
	}
	return d, nil
}

// resolveCategory finds a category by id or, case-insensitively, by name.
// When txType is set only categories of that type match a name.
func resolveCategory(categories []models.Category, ref string, txType models.TransactionType) (*models.Category, error) {
	ref = strings.TrimSpace(ref)
	for i := range categories {
		if categories[i].ID == ref {
			return &categories[i], nil
		}
	}

	var found *models.Category
	for i := range categories {
		c := &categories[i]
		if !strings.EqualFold(c.Name, ref) {
			continue
		}
		if txType != "" && string(c.Type) != string(txType) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("hay más de una categoría %q, usa su id", ref)
		}
		found = c
	}
	if found == nil {
		return nil, fmt.Errorf("no existe la categoría %q", ref)
	}
	return found, nil
}

// signedAmount renders an amount with the sign and color of its type.
func signedAmount(t models.TransactionType, amount decimal.Decimal) string {
	if t == models.TransactionTypeIncome {
		return incomeStyle.Render("+" + format.Currency(amount))
	}
	return expenseStyle.Render("-" + format.Currency(amount))
}

func typeLabel(t string) string {
	switch t {
	case string(models.TransactionTypeIncome):
		return "Ingreso"
	case string(models.TransactionTypeExpense):
		return "Gasto"
	default:
		return t
	}
}

func categoryLabel(tx *models.Transaction) string {
	if !tx.Categorized() {
		return subtleStyle.Render("Sin categoría")
	}
	return swatch(tx.Category.Color) + " " + tx.Category.Name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
