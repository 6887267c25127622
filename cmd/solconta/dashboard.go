package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"solconta/internal/format"
	"solconta/internal/metrics"
	"solconta/internal/models"
)

const recentLimit = 10

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"resumen"},
		Short:   "Muestra el balance, las categorías principales y la semana",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.load(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			m := a.ctrl.Metrics()
			renderSummary(out, m)
			renderTopCategories(out, m.TopCategories)
			renderWeek(out, m.WeeklyTrend)
			renderRecent(out, a.ctrl.Recent(recentLimit))
			return nil
		},
	}
}

func renderSummary(out io.Writer, m metrics.Dashboard) {
	balance := format.Currency(m.Balance.TotalBalance)
	if m.Balance.TotalBalance.IsNegative() {
		balance = expenseStyle.Render(balance)
	}

	lines := []string{
		titleStyle.Render("Balance total") + "  " + headerStyle.Render(balance),
		incomeStyle.Render("Ingresos ") + format.Currency(m.Balance.TotalIncome) +
			subtleStyle.Render(fmt.Sprintf("  %s vs. mes anterior", format.Pct(float64(m.IncomeChangePct)))),
		expenseStyle.Render("Gastos   ") + format.Currency(m.Balance.TotalExpenses) +
			subtleStyle.Render(fmt.Sprintf("  %s vs. mes anterior", format.Pct(float64(m.ExpenseChangePct)))),
		subtleStyle.Render(fmt.Sprintf("%d movimientos", m.TransactionCount)),
	}
	fmt.Fprintln(out, boxStyle.Render(strings.Join(lines, "\n")))
}

func renderTopCategories(out io.Writer, stats []metrics.CategoryStat) {
	fmt.Fprintln(out, titleStyle.Render("Gastos por categoría"))
	if len(stats) == 0 {
		fmt.Fprintln(out, subtleStyle.Render("  Aún no hay gastos categorizados."))
		fmt.Fprintln(out)
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, s := range stats {
		bar := lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).Render(strings.Repeat("█", int(s.Percentage/5)+1))
		fmt.Fprintf(w, "  %s\t%s\t%d%%\t%s\n", s.Name, format.Currency(s.Total), s.Percentage, bar)
	}
	_ = w.Flush()
	fmt.Fprintln(out)
}

func renderWeek(out io.Writer, days []metrics.DayTrend) {
	fmt.Fprintln(out, titleStyle.Render("Últimos 7 días"))

	peak := decimal.Zero
	for _, d := range days {
		peak = decimal.Max(peak, d.Income, d.Expense)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, d := range days {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
			format.DateShort(d.Date),
			incomeStyle.Render(bar(d.Income, peak)),
			expenseStyle.Render(bar(d.Expense, peak)),
			subtleStyle.Render(format.Compact(d.Income.InexactFloat64())+" / "+format.Compact(d.Expense.InexactFloat64())))
	}
	_ = w.Flush()
	fmt.Fprintln(out)
}

// bar draws v relative to peak on a 20 cell scale.
func bar(v, peak decimal.Decimal) string {
	const width = 20
	if peak.IsZero() || !v.IsPositive() {
		return strings.Repeat(" ", width)
	}
	n := int(v.Mul(decimal.NewFromInt(width)).Div(peak).Ceil().IntPart())
	return strings.Repeat("▇", n) + strings.Repeat(" ", width-n)
}

func renderRecent(out io.Writer, txs []models.Transaction) {
	fmt.Fprintln(out, titleStyle.Render("Movimientos recientes"))
	if len(txs) == 0 {
		fmt.Fprintln(out, subtleStyle.Render("  No hay movimientos. Registra uno con 'solconta tx add'."))
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i := range txs {
		tx := &txs[i]
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
			format.Date(tx.TransactionDate),
			truncate(tx.Description, 32),
			categoryLabel(tx),
			signedAmount(tx.Type, tx.Amount))
	}
	_ = w.Flush()
}
