package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"solconta/internal/models"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"categorias"},
		Short:   "Administra las categorías de ingresos y gastos",
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lista las categorías",
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
			categories := a.ctrl.Categories()
			if len(categories) == 0 {
				fmt.Fprintln(out, subtleStyle.Render("No hay categorías. Crea una con 'solconta categories add'."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				headerStyle.Render("Nombre"),
				headerStyle.Render("Tipo"),
				headerStyle.Render("ID"))
			for _, c := range categories {
				fmt.Fprintf(w, "%s %s\t%s\t%s\n", swatch(c.Color), c.Name, typeLabel(string(c.Type)), subtleStyle.Render(c.ID))
			}
			return w.Flush()
		},
	}
}

func addCategoryCmd() *cobra.Command {
	var (
		categoryType string
		color        string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Crea una categoría",
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

			in := models.CategoryInput{Name: args[0], Type: models.CategoryType(categoryType), Color: color}
			if err := result(a.ctrl.CreateCategory(ctx, in)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Categoría creada: ")+args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&categoryType, "type", "expense", "income or expense")
	cmd.Flags().StringVar(&color, "color", models.DefaultCategoryColor, "hex color, e.g. #ef4444")

	return cmd
}

func deleteCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Elimina una categoría",
		Long:  `Elimina una categoría. Sus movimientos se conservan y quedan sin categoría.`,
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

			cat, err := resolveCategory(a.ctrl.Categories(), args[0], "")
			if err != nil {
				return err
			}
			if err := result(a.ctrl.DeleteCategory(ctx, cat.ID)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Categoría eliminada: ")+cat.Name)
			return nil
		},
	}
}
