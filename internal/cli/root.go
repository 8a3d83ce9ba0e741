package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gokatarajesh/quiz-session/internal/app"
	"github.com/gokatarajesh/quiz-session/internal/auth"
	"github.com/gokatarajesh/quiz-session/internal/config"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	profile string
	apiURL  string
	verbose bool

	// logger replaces the console logger; tests set it.
	logger *zerolog.Logger
}

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	return newRootCmd(&globals{}).ExecuteContext(ctx)
}

func newRootCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "quiztaker",
		Short:        "Take and manage timed quizzes from the terminal",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&g.profile, "profile", "", "storage profile (overrides STORAGE_PROFILE)")
	cmd.PersistentFlags().StringVar(&g.apiURL, "api", "", "quiz API base URL (overrides QUIZ_API_URL)")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newTakeCmd(g),
		newExitCmd(g),
		newLoginCmd(g),
		newRegisterCmd(g),
		newWhoamiCmd(g),
		newLogoutCmd(g),
		newQuizCmd(g),
		newResultsCmd(g),
		newReviewCmd(g),
	)
	return cmd
}

// open loads configuration, applies flag overrides and bootstraps the app.
func (g *globals) open(cmd *cobra.Command) (*app.Application, error) {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return nil, err
	}
	if g.profile != "" {
		cfg.Storage.Profile = g.profile
	}
	if g.apiURL != "" {
		cfg.API.BaseURL = g.apiURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if g.verbose {
		cfg.LogLevel = "debug"
	}

	out := cmd.ErrOrStderr()
	return app.New(cmd.Context(), cfg, app.Options{
		Logger: g.logger,
		OnUnauthorized: func() {
			fmt.Fprintln(out, "Your session has expired. Run `quiztaker login` to sign in again.")
		},
	})
}

// withApp opens the app for the duration of fn.
func (g *globals) withApp(cmd *cobra.Command, fn func(a *app.Application) error) error {
	a, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// withInstructor is withApp for commands that need a signed-in user.
func (g *globals) withInstructor(cmd *cobra.Command, fn func(a *app.Application) error) error {
	return g.withApp(cmd, func(a *app.Application) error {
		if _, err := a.RequireSignIn(cmd.Context()); err != nil {
			if errors.Is(err, auth.ErrSignInRequired) {
				return fmt.Errorf("%w: run `quiztaker login` first", err)
			}
			return err
		}
		return fn(a)
	})
}
