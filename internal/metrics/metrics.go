// Package metrics derives the dashboard figures from a user's transactions.
//
// Everything here is a pure function of its inputs. The reference instant is
// passed in and nothing reads a clock. Derived values are recomputed from
// scratch on every call.
package metrics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"solconta/internal/calendar"
	"solconta/internal/models"
)

const (
	// TrendDays is the length of the rolling trend window, today included.
	TrendDays = 7
	// TopCategoryLimit caps the category breakdown.
	TopCategoryLimit = 5
)

var hundred = decimal.NewFromInt(100)

// dayLabels are the short Spanish weekday names, indexed by time.Weekday.
var dayLabels = [7]string{"Dom", "Lun", "Mar", "Mié", "Jue", "Vie", "Sáb"}

// BalanceSummary holds all-time totals.
type BalanceSummary struct {
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	TotalBalance  decimal.Decimal `json:"total_balance"`
}

// CategoryStat is one row of the expense breakdown.
type CategoryStat struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Color      string          `json:"color"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Percentage int64           `json:"percentage"`
}

// DayTrend holds the sums of a single calendar day.
type DayTrend struct {
	Date    calendar.Date   `json:"date"`
	Label   string          `json:"label"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Dashboard is everything the dashboard page renders.
type Dashboard struct {
	Balance          BalanceSummary `json:"balance"`
	IncomeChangePct  int64          `json:"income_change_pct"`
	ExpenseChangePct int64          `json:"expense_change_pct"`
	TransactionCount int            `json:"transaction_count"`
	TopCategories    []CategoryStat `json:"top_categories"`
	WeeklyTrend      []DayTrend     `json:"weekly_trend"`
}

// Compute builds the dashboard for txs as seen at now. "Today" is the
// calendar day of now in now's location. Compute never fails: empty input
// yields zero totals, no categories and seven empty trend buckets.
func Compute(txs []models.Transaction, now time.Time) Dashboard {
	today := calendar.FromTime(now)
	balance := Balance(txs)

	cur, prev := MonthPeriods(today)
	curIncome, curExpense := sumWithin(txs, cur)
	prevIncome, prevExpense := sumWithin(txs, prev)

	return Dashboard{
		Balance:          balance,
		IncomeChangePct:  ChangePct(curIncome, prevIncome),
		ExpenseChangePct: ChangePct(curExpense, prevExpense),
		TransactionCount: len(txs),
		TopCategories:    TopCategories(txs, balance.TotalExpenses),
		WeeklyTrend:      WeeklyTrend(txs, today),
	}
}

// Balance sums income and expenses over all time. Rows with an unknown type
// count toward neither side.
func Balance(txs []models.Transaction) BalanceSummary {
	income, expense := decimal.Zero, decimal.Zero
	for i := range txs {
		switch txs[i].Type {
		case models.TransactionTypeIncome:
			income = income.Add(txs[i].Amount)
		case models.TransactionTypeExpense:
			expense = expense.Add(txs[i].Amount)
		}
	}
	return BalanceSummary{
		TotalIncome:   income,
		TotalExpenses: expense,
		TotalBalance:  income.Sub(expense),
	}
}

// WeeklyTrend returns exactly TrendDays buckets covering [today-6, today],
// oldest first.
func WeeklyTrend(txs []models.Transaction, today calendar.Date) []DayTrend {
	first := today.AddDays(-(TrendDays - 1))
	trend := make([]DayTrend, TrendDays)
	for i := range trend {
		day := first.AddDays(i)
		trend[i] = DayTrend{
			Date:    day,
			Label:   DayLabel(day),
			Income:  decimal.Zero,
			Expense: decimal.Zero,
		}
	}

	for i := range txs {
		tx := &txs[i]
		if !tx.TransactionDate.Within(first, today) {
			continue
		}
		idx := first.DaysUntil(tx.TransactionDate)
		switch tx.Type {
		case models.TransactionTypeIncome:
			trend[idx].Income = trend[idx].Income.Add(tx.Amount)
		case models.TransactionTypeExpense:
			trend[idx].Expense = trend[idx].Expense.Add(tx.Amount)
		}
	}
	return trend
}

// DayLabel returns the short Spanish weekday name of d.
func DayLabel(d calendar.Date) string {
	return dayLabels[d.Weekday()]
}

// TopCategories groups categorized expense rows by category, ranks them by
// total descending and keeps the first TopCategoryLimit. Ties keep the order
// in which each category was first seen.
//
// A row counts as categorized only when its category reference resolved to a
// joined category record; rows pointing at a deleted category are treated as
// uncategorized.
func TopCategories(txs []models.Transaction, totalExpenses decimal.Decimal) []CategoryStat {
	index := make(map[string]int)
	stats := make([]CategoryStat, 0)

	for i := range txs {
		tx := &txs[i]
		if tx.Type != models.TransactionTypeExpense || !tx.Categorized() {
			continue
		}
		id := *tx.CategoryID
		pos, ok := index[id]
		if !ok {
			pos = len(stats)
			index[id] = pos
			stats = append(stats, CategoryStat{
				ID:    id,
				Name:  tx.Category.Name,
				Color: tx.Category.Color,
				Total: decimal.Zero,
			})
		}
		stats[pos].Total = stats[pos].Total.Add(tx.Amount)
		stats[pos].Count++
	}

	for i := range stats {
		stats[i].Percentage = Percentage(stats[i].Total, totalExpenses)
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Total.GreaterThan(stats[j].Total)
	})

	if len(stats) > TopCategoryLimit {
		stats = stats[:TopCategoryLimit]
	}
	return stats
}

// Percentage returns part as a rounded share of whole, or 0 when whole is 0.
func Percentage(part, whole decimal.Decimal) int64 {
	if whole.IsZero() {
		return 0
	}
	return part.Mul(hundred).Div(whole).Round(0).IntPart()
}

// ChangePct is the period-over-period change rule: growth from a zero base
// is reported as a flat 100%, no change from zero as 0%.
//
// Rounding is half away from zero, so 12.5 becomes 13 and -12.5 becomes -13.
func ChangePct(cur, prev decimal.Decimal) int64 {
	if prev.IsZero() {
		if cur.IsPositive() {
			return 100
		}
		return 0
	}
	return cur.Sub(prev).Mul(hundred).Div(prev).Round(0).IntPart()
}

// Period is an inclusive range of calendar days.
type Period struct {
	From calendar.Date
	To   calendar.Date
}

// Contains reports whether d falls inside p.
func (p Period) Contains(d calendar.Date) bool {
	return d.Within(p.From, p.To)
}

// MonthPeriods returns the month-to-date period ending at today and the
// whole previous calendar month.
func MonthPeriods(today calendar.Date) (current, previous Period) {
	start := today.StartOfMonth()
	current = Period{From: start, To: today}
	previous = Period{From: start.AddMonths(-1), To: start.AddDays(-1)}
	return current, previous
}

func sumWithin(txs []models.Transaction, p Period) (income, expense decimal.Decimal) {
	income, expense = decimal.Zero, decimal.Zero
	for i := range txs {
		if !p.Contains(txs[i].TransactionDate) {
			continue
		}
		switch txs[i].Type {
		case models.TransactionTypeIncome:
			income = income.Add(txs[i].Amount)
		case models.TransactionTypeExpense:
			expense = expense.Add(txs[i].Amount)
		}
	}
	return income, expense
}
