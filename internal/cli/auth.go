package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gokatarajesh/quiz-session/internal/app"
	"github.com/gokatarajesh/quiz-session/internal/storage"
)

// readSecret takes the flag value or else one line from in.
func readSecret(in io.Reader, out io.Writer, flagValue, label string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprintf(out, "%s: ", label)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCmd(g *globals) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as an instructor",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), password, "Password")
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(a *app.Application) error {
				user, err := a.Auth().Login(cmd.Context(), email, secret)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", user.Name, user.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCmd(g *globals) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an instructor account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), password, "Password")
			if err != nil {
				return err
			}
			return g.withApp(cmd, func(a *app.Application) error {
				user, err := a.Auth().Register(cmd.Context(), name, email, secret)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s. You are signed in.\n", user.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "your name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newWhoamiCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in instructor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withInstructor(cmd, func(a *app.Application) error {
				user, _ := a.Auth().Session().User()
				fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", user.Name, user.Email)
				return nil
			})
		},
	}
}

func newLogoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token and any attempt in progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(a *app.Application) error {
				if err := a.Auth().Logout(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
				return nil
			})
		},
	}
}

func newExitCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "exit",
		Short: "Abandon the attempt in progress without submitting it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(a *app.Application) error {
				ctx := cmd.Context()
				id, ok, err := storage.GetString(ctx, a.Store(), storage.KeyParticipantID)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "No attempt in progress.")
					return nil
				}
				if err := a.Store().Remove(ctx, storage.KeyParticipantID); err != nil {
					return err
				}
				log := a.Logger()
				log.Info().Str("participant_id", id).Msg("participant exited quiz")
				fmt.Fprintln(cmd.OutOrStdout(), "Attempt abandoned. Saved answers stay on the server.")
				return nil
			})
		},
	}
}
