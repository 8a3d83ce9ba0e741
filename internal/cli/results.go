package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gokatarajesh/quiz-session/internal/app"
	"github.com/gokatarajesh/quiz-session/internal/grading"
)

func newResultsCmd(g *globals) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "results <quizID> [participantID]",
		Short: "List a quiz's participants, or one participant's answers",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			return g.withInstructor(cmd, func(a *app.Application) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					list, err := a.Grading().Participants(ctx, args[0])
					if err != nil {
						return err
					}
					if output != outputText {
						return encode(out, output, list)
					}
					fmt.Fprintf(out, "%s: %d participants\n", list.Quiz.Title, len(list.Participants))
					tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tSTUDENT ID\tSTARTED\tSUBMITTED\tPOINTS")
					for _, p := range list.Participants {
						points := "-"
						if p.IsGraded {
							points = fmt.Sprintf("%g", p.Points)
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
							p.ID, p.Name, p.StudentID, p.CreatedAt.Format("2006-01-02 15:04"), p.IsCompleted, points)
					}
					return tw.Flush()
				}

				summary, err := a.Grading().Results(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if output != outputText {
					return encode(out, output, summary)
				}
				writeSummary(out, summary)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "text, yaml or json")
	return cmd
}

var statusMark = map[grading.Status]string{
	grading.StatusUnanswered: "[ ]",
	grading.StatusPending:    "[?]",
	grading.StatusCorrect:    "[+]",
	grading.StatusIncorrect:  "[x]",
}

func writeSummary(w io.Writer, s grading.Summary) {
	fmt.Fprintf(w, "%s (%s), %s\n", s.Participant.Name, s.Participant.StudentID, s.Quiz.Title)
	fmt.Fprintf(w, "Points: %g / %g", s.Awarded, s.Possible)
	if s.Pending > 0 {
		fmt.Fprintf(w, ", %d awaiting review", s.Pending)
	}
	fmt.Fprintln(w)

	for _, line := range s.Lines {
		fmt.Fprintf(w, "\n%s %d. %s\n", statusMark[line.Status], line.Index, line.Question.Prompt)
		if line.Status == grading.StatusUnanswered {
			fmt.Fprintln(w, "    Not answered")
			continue
		}
		fmt.Fprintf(w, "    %s\n", line.Answer)
		fmt.Fprintf(w, "    %g / %g pts  (answer %s)\n", line.Awarded, line.Question.Points, line.AnswerID)
	}
}

func newReviewCmd(g *globals) *cobra.Command {
	var (
		correct   bool
		incorrect bool
		points    float64
	)
	cmd := &cobra.Command{
		Use:   "review <quizID> <participantID> <answerID> --correct|--incorrect",
		Short: "Grade a free-text answer",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if correct == incorrect {
				return fmt.Errorf("pass exactly one of --correct or --incorrect")
			}
			var explicit *float64
			if cmd.Flags().Changed("points") {
				explicit = &points
			}
			return g.withInstructor(cmd, func(a *app.Application) error {
				summary, err := a.Grading().Review(cmd.Context(), args[0], args[1], args[2], correct, explicit)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Review saved.")
				writeSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&correct, "correct", false, "mark the answer correct (awards the question's points)")
	cmd.Flags().BoolVar(&incorrect, "incorrect", false, "mark the answer incorrect (awards no points)")
	cmd.Flags().Float64Var(&points, "points", 0, "award these points instead")
	return cmd
}
