package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gokatarajesh/quiz-session/internal/api"
)

// State of the quiz-taking flow.
type State int

const (
	StateLoading State = iota
	StateStartForm
	StateInactive
	StateAnswering
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateStartForm:
		return "start_form"
	case StateInactive:
		return "inactive"
	case StateAnswering:
		return "answering"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrQuizInactive      = errors.New("quiz is not active")
	ErrNotStarted        = errors.New("quiz has not been started")
	ErrAlreadyStarted    = errors.New("quiz already started")
	ErrStartInFlight     = errors.New("start already in progress")
	ErrLocked            = errors.New("answers are locked")
	ErrCompleted         = errors.New("quiz already submitted")
	ErrFinishInFlight    = errors.New("submission already in progress")
	ErrUnknownQuestion   = errors.New("unknown question")
	ErrWrongQuestionType = errors.New("wrong question type")
	ErrUnknownChoice     = errors.New("not one of the question's choices")
	ErrRecheckCooldown   = errors.New("please wait before checking again")
)

// ValidationError carries per-field messages for the start form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid start form: " + strings.Join(parts, "; ")
}

// Level of a user-visible notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a transient message for the participant.
type Notification struct {
	Level       Level
	Title       string
	Description string
}

// Notifier shows notifications; the CLI prints them.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

// View is a snapshot of the session for rendering.
type View struct {
	State            State
	Quiz             api.Quiz
	Participant      *api.Participant
	Answers          map[string]string
	QuizLoaded       bool
	Remaining        int64
	Urgent           bool
	Locked           bool
	CanStart         bool
	CanFinish        bool
	RecheckAvailable bool
}

// Clock formats the remaining time as m:ss.
func (v View) Clock() string {
	return fmt.Sprintf("%d:%02d", v.Remaining/60, v.Remaining%60)
}

// Expired reports the "time expired" banner condition.
func (v View) Expired() bool {
	return v.Participant != nil && v.QuizLoaded && v.Remaining == 0 && !v.Participant.IsCompleted
}
