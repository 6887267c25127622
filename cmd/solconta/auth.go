package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"solconta/internal/client"
)

func loginCmd() *cobra.Command {
	var (
		email    string
		password string
		google   bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Inicia sesión",
		Long:  `Inicia sesión con correo y contraseña, o con Google usando --google.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if google {
				return loginWithGoogle(cmd, a)
			}

			ask := newPrompter(cmd)

			if email, err = ask.line("Correo", email); err != nil {
				return err
			}
			if password, err = ask.line("Contraseña", password); err != nil {
				return err
			}
			if err := result(a.auth.SignIn(ctx, email, password)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Sesión iniciada como "+a.client.Session().Current().User.Email))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&google, "google", false, "sign in with Google")

	return cmd
}

func loginWithGoogle(cmd *cobra.Command, a *app) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Abre este enlace en tu navegador para continuar con Google:")
	fmt.Fprintln(out, titleStyle.Render(a.auth.OAuthURL("google")))

	callback, err := newPrompter(cmd).line("Pega aquí la dirección a la que volviste", "")
	if err != nil {
		return err
	}
	if err := result(a.auth.CompleteOAuth(cmd.Context(), callback)); err != nil {
		return err
	}
	fmt.Fprintln(out, successStyle.Render("Sesión iniciada como "+a.client.Session().Current().User.Email))
	return nil
}

func signupCmd() *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Crea una cuenta",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			ask := newPrompter(cmd)

			if email, err = ask.line("Correo", email); err != nil {
				return err
			}
			if password, err = ask.line("Contraseña", password); err != nil {
				return err
			}

			res, pending := a.auth.SignUp(ctx, email, password)
			if err := result(res); err != nil {
				return err
			}
			if pending {
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Cuenta creada. Revisa tu correo para confirmarla y luego usa 'solconta confirm'."))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Cuenta creada, sesión iniciada."))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")

	return cmd
}

func confirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <token|link>",
		Short: "Confirma tu correo con el enlace recibido",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := result(a.auth.ConfirmEmail(ctx, tokenArg(args[0]))); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Correo confirmado, sesión iniciada."))
			return nil
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Cierra la sesión",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := result(a.auth.SignOut(ctx)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sesión cerrada.")
			return nil
		},
	}
}

func resetPasswordCmd() *cobra.Command {
	var (
		email      string
		redirectTo string
	)

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Envía un enlace para restablecer la contraseña",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			ask := newPrompter(cmd)

			if email, err = ask.line("Correo", email); err != nil {
				return err
			}
			if err := result(a.auth.RequestPasswordReset(ctx, email, redirectTo)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Si la cuenta existe, te enviamos un enlace para restablecer la contraseña."))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&redirectTo, "redirect-to", "", "page the recovery link should open")

	return cmd
}

func newPasswordCmd() *cobra.Command {
	var (
		token    string
		password string
		confirm  string
	)

	cmd := &cobra.Command{
		Use:   "new-password",
		Short: "Define una nueva contraseña",
		Long: `Define una nueva contraseña. Con --token se usa el enlace de recuperación
recibido por correo; sin él se cambia la contraseña de la sesión actual.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			ask := newPrompter(cmd)

			if token != "" {
				if err := result(a.auth.RecoverWithToken(ctx, tokenArg(token))); err != nil {
					return err
				}
			}
			if a.client.Session().Current() == nil {
				return errNotSignedIn
			}

			if password, err = ask.line("Nueva contraseña", password); err != nil {
				return err
			}
			if confirm, err = ask.line("Repite la contraseña", confirm); err != nil {
				return err
			}

			score, label := client.PasswordStrength(password)
			fmt.Fprintf(cmd.OutOrStdout(), "Seguridad: %s %s\n", strengthMeter(score), label)

			if err := result(a.auth.UpdatePassword(ctx, password, confirm)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Contraseña actualizada."))
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "recovery token or the full recovery link")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	cmd.Flags().StringVar(&confirm, "confirm", "", "new password, repeated")

	return cmd
}
