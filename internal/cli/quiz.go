package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gokatarajesh/quiz-session/internal/api"
	"github.com/gokatarajesh/quiz-session/internal/app"
	"github.com/gokatarajesh/quiz-session/internal/authoring"
)

const (
	outputText = "text"
	outputYAML = "yaml"
	outputJSON = "json"
)

func checkOutput(format string) error {
	switch format {
	case outputText, outputYAML, outputJSON:
		return nil
	}
	return fmt.Errorf("unknown output format %q (text, yaml or json)", format)
}

// encode writes v as yaml or json.
func encode(w io.Writer, format string, v any) error {
	if format == outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func newQuizCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Manage your quizzes",
	}
	cmd.AddCommand(
		newQuizListCmd(g),
		newQuizShowCmd(g),
		newQuizCreateCmd(g),
		newQuizUpdateCmd(g),
		newQuizDeleteCmd(g),
		newQuizActivateCmd(g, true),
		newQuizActivateCmd(g, false),
	)
	return cmd
}

func shareLink(a *app.Application, quizID string) string {
	return strings.TrimSuffix(a.Config().API.PublicURL, "/") + "/quiz/" + quizID
}

func newQuizListCmd(g *globals) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your quizzes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			return g.withInstructor(cmd, func(a *app.Application) error {
				quizzes, err := a.Authoring().List(cmd.Context())
				if err != nil {
					return err
				}
				if output != outputText {
					return encode(cmd.OutOrStdout(), output, quizzes)
				}
				if len(quizzes) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No quizzes yet. Create one with `quiztaker quiz create -f quiz.yaml`.")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tQUESTIONS\tDURATION\tACTIVE")
				for _, q := range quizzes {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%dm\t%t\n", q.ID, q.Title, len(q.Questions), q.Duration, q.IsActive)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "text, yaml or json")
	return cmd
}

func newQuizShowCmd(g *globals) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <quizID>",
		Short: "Print a quiz; --output yaml gives an editable definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			return g.withInstructor(cmd, func(a *app.Application) error {
				quiz, err := a.Authoring().Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch output {
				case outputYAML:
					data, err := authoring.Marshal(quiz)
					if err != nil {
						return err
					}
					_, err = out.Write(data)
					return err
				case outputJSON:
					return encode(out, output, quiz)
				}
				writeQuiz(out, quiz)
				fmt.Fprintf(out, "\nShare: %s\n", shareLink(a, quiz.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "text, yaml or json")
	return cmd
}

func writeQuiz(w io.Writer, q api.Quiz) {
	state := "inactive"
	if q.IsActive {
		state = "active"
	}
	fmt.Fprintf(w, "%s [%s]\n%d min, %g points\n", q.Title, state, q.Duration, q.TotalPoints())
	if q.Description != "" {
		fmt.Fprintf(w, "%s\n", q.Description)
	}
	for i, question := range q.Questions {
		fmt.Fprintf(w, "\n%d. %s (%s, %g pts)\n", i+1, question.Prompt, question.Type, question.Points)
		for j, c := range question.Choices {
			mark := " "
			for _, correct := range question.CorrectChoices {
				if c == correct {
					mark = "*"
				}
			}
			fmt.Fprintf(w, "  %s %c) %s\n", mark, 'a'+j, c)
		}
	}
}

func newQuizCreateCmd(g *globals) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create -f quiz.yaml",
		Short: "Create a quiz from a YAML definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			quiz, err := authoring.LoadFile(file)
			if err != nil {
				return err
			}
			return g.withInstructor(cmd, func(a *app.Application) error {
				if err := a.Authoring().Create(cmd.Context(), quiz); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Quiz %q created.\n", quiz.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "quiz definition")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newQuizUpdateCmd(g *globals) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "update <quizID> -f quiz.yaml",
		Short: "Replace a quiz with a YAML definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quiz, err := authoring.LoadFile(file)
			if err != nil {
				return err
			}
			return g.withInstructor(cmd, func(a *app.Application) error {
				if err := a.Authoring().Update(cmd.Context(), args[0], quiz); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Quiz %s updated.\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "quiz definition")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newQuizDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <quizID>",
		Short: "Delete a quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withInstructor(cmd, func(a *app.Application) error {
				if err := a.Authoring().Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Quiz %s deleted.\n", args[0])
				return nil
			})
		},
	}
}

func newQuizActivateCmd(g *globals, active bool) *cobra.Command {
	use, short, done := "activate", "Open a quiz to participants", "open"
	if !active {
		use, short, done = "deactivate", "Close a quiz to new participants", "closed"
	}
	return &cobra.Command{
		Use:   use + " <quizID>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withInstructor(cmd, func(a *app.Application) error {
				if err := a.Authoring().SetActive(cmd.Context(), args[0], active); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Quiz %s is %s.\n", args[0], done)
				return nil
			})
		},
	}
}
