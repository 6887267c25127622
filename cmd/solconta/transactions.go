package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"solconta/internal/calendar"
	"solconta/internal/dashboard"
	"solconta/internal/format"
	"solconta/internal/models"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"movimientos"},
		Short:   "Lista, registra, edita y elimina movimientos",
	}

	cmd.AddCommand(listTransactionsCmd())
	cmd.AddCommand(addTransactionCmd())
	cmd.AddCommand(editTransactionCmd())
	cmd.AddCommand(deleteTransactionCmd())

	return cmd
}

func listTransactionsCmd() *cobra.Command {
	var (
		txType   string
		search   string
		from     string
		to       string
		category string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Muestra el historial de movimientos",
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

			filter := dashboard.Filter{Type: models.TransactionType(txType), Search: search}
			if txType == "all" {
				filter.Type = ""
			}
			if filter.Type != "" && !filter.Type.Valid() {
				return fmt.Errorf("tipo inválido %q, usa income, expense o all", txType)
			}
			if from != "" {
				if filter.From, err = calendar.Parse(from); err != nil {
					return err
				}
			}
			if to != "" {
				if filter.To, err = calendar.Parse(to); err != nil {
					return err
				}
			}
			if category != "" {
				cat, err := resolveCategory(a.ctrl.Categories(), category, filter.Type)
				if err != nil {
					return err
				}
				filter.CategoryID = cat.ID
			}

			history := a.ctrl.History(filter)
			out := cmd.OutOrStdout()
			if len(history.Transactions) == 0 {
				fmt.Fprintln(out, subtleStyle.Render("No hay movimientos que coincidan con los filtros."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				headerStyle.Render("Fecha"),
				headerStyle.Render("Descripción"),
				headerStyle.Render("Categoría"),
				headerStyle.Render("Monto"),
				headerStyle.Render("ID"))
			for i := range history.Transactions {
				tx := &history.Transactions[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					format.Date(tx.TransactionDate),
					truncate(tx.Description, 40),
					categoryLabel(tx),
					signedAmount(tx.Type, tx.Amount),
					subtleStyle.Render(tx.ID))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			totals := history.Totals
			fmt.Fprintln(out)
			fmt.Fprintf(out, "%d movimientos  %s  %s  Total: %s\n",
				len(history.Transactions),
				incomeStyle.Render("+"+format.Currency(totals.TotalIncome)),
				expenseStyle.Render("-"+format.Currency(totals.TotalExpenses)),
				headerStyle.Render(format.Currency(totals.TotalBalance)))
			return nil
		},
	}

	cmd.Flags().StringVar(&txType, "type", "all", "income, expense or all")
	cmd.Flags().StringVarP(&search, "search", "q", "", "text contained in the description")
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&category, "category", "", "category id or name")

	return cmd
}

// txFlags are the form fields shared by add and edit.
type txFlags struct {
	txType      string
	amount      string
	description string
	category    string
	date        string
	notes       string
}

func (f *txFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.txType, "type", "expense", "income or expense")
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount in soles, e.g. 25.90")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "description")
	cmd.Flags().StringVar(&f.category, "category", "", "category id or name, empty for none")
	cmd.Flags().StringVar(&f.date, "date", "hoy", "date, YYYY-MM-DD, hoy or ayer")
	cmd.Flags().StringVar(&f.notes, "notes", "", "optional notes")
}

// apply overlays the flags the user set on in. With all set, every flag
// counts as set.
func (f *txFlags) apply(cmd *cobra.Command, in *models.TransactionInput, categories []models.Category, today calendar.Date, all bool) error {
	changed := func(name string) bool { return all || cmd.Flags().Changed(name) }

	if changed("type") {
		in.Type = models.TransactionType(strings.ToLower(strings.TrimSpace(f.txType)))
		// A category of the old type cannot follow the transaction.
		if !changed("category") && in.CategoryID != nil {
			for _, c := range categories {
				if c.ID == *in.CategoryID && string(c.Type) != string(in.Type) {
					in.CategoryID = nil
				}
			}
		}
	}
	if changed("amount") {
		amount, err := parseAmount(f.amount)
		if err != nil {
			return err
		}
		in.Amount = amount
	}
	if changed("description") {
		in.Description = f.description
	}
	if changed("category") {
		in.CategoryID = nil
		if strings.TrimSpace(f.category) != "" {
			cat, err := resolveCategory(categories, f.category, in.Type)
			if err != nil {
				return err
			}
			in.CategoryID = &cat.ID
		}
	}
	if changed("date") {
		d, err := parseDate(f.date, today)
		if err != nil {
			return err
		}
		in.TransactionDate = d
	}
	if changed("notes") {
		notes := f.notes
		in.Notes = &notes
	}
	return nil
}

func addTransactionCmd() *cobra.Command {
	var flags txFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Registra un ingreso o un gasto",
		Example: `  solconta tx add --type expense --amount 25.90 -d "Menú" --category Comida
  solconta tx add --type income --amount 3500 -d "Sueldo" --date 2026-02-28`,
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

			var in models.TransactionInput
			if err := flags.apply(cmd, &in, a.ctrl.Categories(), a.ctrl.Today(), true); err != nil {
				return err
			}
			if err := result(a.ctrl.AddTransaction(ctx, in)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Movimiento registrado: ")+signedAmount(in.Type, in.Amount))
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}

func editTransactionCmd() *cobra.Command {
	var flags txFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edita un movimiento",
		Long:  `Edita un movimiento. Solo cambian los campos indicados con flags.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.load(ctx); err != nil {
				return err
			}

			existing := findTransaction(a.ctrl.Transactions(), args[0])
			if existing == nil {
				return errors.New("El movimiento no existe.")
			}

			in := models.TransactionInput{
				Type:            existing.Type,
				Amount:          existing.Amount,
				Description:     existing.Description,
				CategoryID:      existing.CategoryID,
				TransactionDate: existing.TransactionDate,
				Notes:           existing.Notes,
			}
			if err := flags.apply(cmd, &in, a.ctrl.Categories(), a.ctrl.Today(), false); err != nil {
				return err
			}
			if err := result(a.ctrl.EditTransaction(ctx, existing.ID, in)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Movimiento actualizado."))
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}

func deleteTransactionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Elimina un movimiento",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.load(ctx); err != nil {
				return err
			}
			if err := result(a.ctrl.DeleteTransaction(ctx, args[0])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Movimiento eliminado."))
			return nil
		},
	}
}

// findTransaction matches a full id or an unambiguous id prefix.
func findTransaction(txs []models.Transaction, ref string) *models.Transaction {
	var found *models.Transaction
	for i := range txs {
		if txs[i].ID == ref {
			return &txs[i]
		}
		if strings.HasPrefix(txs[i].ID, ref) {
			if found != nil {
				return nil
			}
			found = &txs[i]
		}
	}
	return found
}
