package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/gokatarajesh/quiz-session/internal/api"
	"github.com/gokatarajesh/quiz-session/internal/app"
	"github.com/gokatarajesh/quiz-session/internal/session"
)

const takeHelp = `Commands:
  start                 enter your name and student ID and begin
  recheck               check again whether the quiz is open
  show                  print the questions and your answers
  answer <n> <value>    answer question n (a choice letter or its text, or free text)
  time                  print the time left
  finish                submit your answers
  exit                  abandon this attempt and return to the start form
  quit                  leave; the attempt resumes next time
`

func newTakeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "take <quizID>",
		Short: "Take a quiz, resuming the attempt in progress if there is one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd, func(a *app.Application) error {
				term := newTerminal(cmd.InOrStdin(), cmd.OutOrStdout())
				ctrl := a.NewSession(args[0], session.NotifierFunc(term.notify))
				ctrl.OnChange(term.onChange)
				return a.RunSession(cmd.Context(), ctrl, func(ctx context.Context) error {
					return term.loop(ctx, ctrl)
				})
			})
		},
	}
}

// terminal is the line-oriented quiz view.
type terminal struct {
	in    io.Reader
	lines chan string

	mu      sync.Mutex
	out     io.Writer
	state   session.State
	urgent  bool
	expired bool
}

func newTerminal(in io.Reader, out io.Writer) *terminal {
	return &terminal{in: in, out: out, state: session.StateLoading}
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) notify(n session.Notification) {
	t.printf("[%s] %s: %s\n", n.Level, n.Title, n.Description)
}

// onChange prints banners for transitions the participant must notice.
func (t *terminal) onChange(v session.View) {
	t.mu.Lock()
	stateChanged := v.State != t.state
	becameUrgent := v.Urgent && !t.urgent && v.State == session.StateAnswering && v.Remaining > 0
	becameExpired := v.Expired() && !t.expired
	t.state, t.urgent, t.expired = v.State, v.Urgent, v.Expired()
	t.mu.Unlock()

	if stateChanged && v.State == session.StateCompleted {
		t.printf("Quiz finished. Your answers are locked.\n")
	}
	if becameUrgent {
		t.printf("Hurry up! %s left.\n", v.Clock())
	}
	if becameExpired {
		t.printf("Time expired. Submitting your answers.\n")
	}
}

// loop reads commands until quit, EOF or ctx is done.
func (t *terminal) loop(ctx context.Context, ctrl *session.Controller) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.lines = make(chan string)
	// closing the input unblocks the scanner once the loop is done
	if closer, ok := t.in.(io.Closer); ok {
		context.AfterFunc(ctx, func() { _ = closer.Close() })
	}
	go func() {
		defer close(t.lines)
		scanner := bufio.NewScanner(t.in)
		for scanner.Scan() {
			select {
			case t.lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	t.render(ctrl.View())
	for {
		t.prompt(ctrl.View())
		line, ok := t.readLine(ctx)
		if !ok {
			return nil
		}
		done, err := t.handle(ctx, ctrl, line)
		if err != nil {
			t.printError(err)
		}
		if done {
			return nil
		}
	}
}

func (t *terminal) readLine(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-t.lines:
		return strings.TrimSpace(line), ok
	}
}

func (t *terminal) prompt(v session.View) {
	switch v.State {
	case session.StateAnswering:
		t.printf("[%s] > ", v.Clock())
	default:
		t.printf("> ")
	}
}

func (t *terminal) handle(ctx context.Context, ctrl *session.Controller, line string) (bool, error) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "":
		return false, nil
	case "help", "?":
		t.printf("%s", takeHelp)
	case "start":
		t.printf("Full name: ")
		name, ok := t.readLine(ctx)
		if !ok {
			return true, nil
		}
		t.printf("Student ID: ")
		studentID, ok := t.readLine(ctx)
		if !ok {
			return true, nil
		}
		if err := ctrl.Start(ctx, name, studentID); err != nil {
			return false, err
		}
		t.render(ctrl.View())
	case "recheck":
		if err := ctrl.Recheck(ctx); err != nil {
			return false, err
		}
		t.render(ctrl.View())
	case "show", "ls":
		t.render(ctrl.View())
	case "answer", "a":
		return false, t.answer(ctrl, rest)
	case "time":
		v := ctrl.View()
		if v.Participant == nil {
			return false, session.ErrNotStarted
		}
		t.printf("%s left\n", v.Clock())
	case "finish", "submit":
		return false, ctrl.Finish(ctx)
	case "exit":
		if err := ctrl.Exit(ctx); err != nil {
			return false, err
		}
		t.printf("Attempt abandoned.\n")
		t.render(ctrl.View())
	case "quit", "q":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q, type help", cmd)
	}
	return false, nil
}

func (t *terminal) answer(ctrl *session.Controller, args string) error {
	num, value, _ := strings.Cut(args, " ")
	value = strings.TrimSpace(value)
	n, err := strconv.Atoi(num)
	if err != nil {
		return fmt.Errorf("usage: answer <n> <value>")
	}
	v := ctrl.View()
	if n < 1 || n > len(v.Quiz.Questions) {
		return fmt.Errorf("question %d does not exist", n)
	}
	q := v.Quiz.Questions[n-1]

	if q.Type == api.QuestionChoice {
		return ctrl.SelectChoice(q.ID, resolveChoice(q, value))
	}
	// the end of the line is where the text input loses focus
	if err := ctrl.EditText(q.ID, value); err != nil {
		return err
	}
	return ctrl.Blur(q.ID)
}

// resolveChoice maps a choice text (case-insensitive) or its letter to the
// choice. Exact text wins over a letter.
func resolveChoice(q api.Question, input string) string {
	for _, c := range q.Choices {
		if strings.EqualFold(c, input) {
			return c
		}
	}
	if len(input) == 1 {
		if i := int(strings.ToLower(input)[0]) - 'a'; i >= 0 && i < len(q.Choices) {
			return q.Choices[i]
		}
	}
	return input
}

func (t *terminal) printError(err error) {
	var verr *session.ValidationError
	if errors.As(err, &verr) {
		keys := make([]string, 0, len(verr.Fields))
		for k := range verr.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.printf("error: %s\n", verr.Fields[k])
		}
		return
	}
	t.printf("error: %v\n", err)
}

func (t *terminal) render(v session.View) {
	var b strings.Builder
	switch v.State {
	case session.StateLoading:
		b.WriteString("Loading...\n")
	case session.StateInactive:
		fmt.Fprintf(&b, "%s\nThis quiz is not active yet. Type `recheck` to check again.\n", v.Quiz.Title)
	case session.StateStartForm:
		if v.Quiz.ID == "" {
			b.WriteString("The quiz could not be loaded. Type `recheck` to try again.\n")
			break
		}
		writeQuizHeader(&b, v.Quiz)
		b.WriteString("Type `start` to begin, `help` for commands.\n")
	case session.StateAnswering, session.StateCompleted:
		if v.State == session.StateAnswering && !v.QuizLoaded {
			b.WriteString("The quiz could not be loaded. Type `recheck` to try again.\n")
			break
		}
		writeQuizHeader(&b, v.Quiz)
		if v.State == session.StateCompleted {
			b.WriteString("Submitted. Your results will be available soon.\n")
		} else {
			fmt.Fprintf(&b, "Time left: %s\n", v.Clock())
		}
		for i, q := range v.Quiz.Questions {
			fmt.Fprintf(&b, "\n%d. %s (%g pts)\n", i+1, q.Prompt, q.Points)
			answer := v.Answers[q.ID]
			if q.Type == api.QuestionChoice {
				for j, c := range q.Choices {
					mark := " "
					if c == answer {
						mark = "*"
					}
					fmt.Fprintf(&b, "  %s %c) %s\n", mark, 'a'+j, c)
				}
				continue
			}
			if answer == "" {
				b.WriteString("   (no answer)\n")
			} else {
				fmt.Fprintf(&b, "   > %s\n", answer)
			}
		}
	}
	t.printf("%s", b.String())
}

func writeQuizHeader(b *strings.Builder, q api.Quiz) {
	fmt.Fprintf(b, "%s (%d questions, %d min)\n", q.Title, len(q.Questions), q.Duration)
	if q.Description != "" {
		fmt.Fprintf(b, "%s\n", q.Description)
	}
}
