package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/quiz-session/internal/api"
	"github.com/gokatarajesh/quiz-session/internal/metrics"
	"github.com/gokatarajesh/quiz-session/internal/storage"
)

// API is the part of the quiz REST API the session uses.
type API interface {
	GetQuiz(ctx context.Context, quizID string) (api.Quiz, error)
	CreateParticipant(ctx context.Context, req api.CreateParticipantRequest) (api.Participant, error)
	GetParticipant(ctx context.Context, participantID string) (api.Participant, error)
	GetParticipantAnswers(ctx context.Context, participantID string) ([]api.ParticipantAnswer, error)
	SaveAnswer(ctx context.Context, participantID, questionID, answer string) error
	MarkFinished(ctx context.Context, participantID string) error
}

// Finish triggers, used as metric labels.
const (
	TriggerManual = "manual"
	TriggerTimer  = "timer"
)

// Options tune the controller. Zero values pick the defaults.
type Options struct {
	TickInterval    time.Duration
	PollInterval    time.Duration
	RecheckCooldown time.Duration
	WriteTimeout    time.Duration
	Now             func() time.Time
	Metrics         *metrics.Collectors
	Notifier        Notifier
}

func (o *Options) defaults() {
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.RecheckCooldown < 0 {
		o.RecheckCooldown = 0
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Notifier == nil {
		o.Notifier = nopNotifier{}
	}
}

// Controller drives one participant through one quiz: identity resolution,
// answer persistence, the countdown and submission.
//
// All fields below mu are guarded by it. Network calls are never made while
// holding mu.
type Controller struct {
	quizID string
	api    API
	store  storage.Store
	opts   Options
	logger zerolog.Logger

	writes *writer
	bg     sync.WaitGroup

	obsMu     sync.Mutex
	observers []func(View)

	mu          sync.Mutex
	state       State
	quiz        api.Quiz
	quizLoaded  bool
	participant *api.Participant
	answers     map[string]string
	remaining   int64
	// autoFinished latches the timer-driven finish so it fires at most once.
	autoFinished bool
	finishing    bool
	starting     bool
	recheckAt    time.Time
	// generation changes on Exit; late results for an older generation are dropped.
	generation uint64
}

func New(quizID string, client API, store storage.Store, opts Options, logger zerolog.Logger) *Controller {
	opts.defaults()
	return &Controller{
		quizID:  quizID,
		api:     client,
		store:   store,
		opts:    opts,
		logger:  logger.With().Str("component", "session").Str("quiz_id", quizID).Logger(),
		writes:  newWriter(),
		answers: map[string]string{},
		state:   StateLoading,
	}
}

// OnChange registers an observer called with a fresh View after every
// transition. Observers run on the goroutine that caused the change.
func (c *Controller) OnChange(fn func(View)) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, fn)
}

// View returns the current snapshot.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	v := View{
		State:            c.state,
		Quiz:             c.quiz,
		Answers:          make(map[string]string, len(c.answers)),
		Remaining:        c.remaining,
		Urgent:           Urgent(c.remaining),
		QuizLoaded:       c.quizLoaded,
		Locked:           c.lockedLocked(),
		CanStart:         c.canStartLocked(),
		RecheckAvailable: c.recheckableLocked() && !c.opts.Now().Before(c.recheckAt),
	}
	for k, val := range c.answers {
		v.Answers[k] = val
	}
	if c.participant != nil {
		p := *c.participant
		v.Participant = &p
		v.CanFinish = !p.IsCompleted && !c.finishing
	}
	return v
}

func (c *Controller) emit() {
	view := c.View()
	c.obsMu.Lock()
	observers := append([]func(View){}, c.observers...)
	c.obsMu.Unlock()
	for _, fn := range observers {
		fn(view)
	}
}

func (c *Controller) notify(level Level, title, description string) {
	c.opts.Notifier.Notify(Notification{Level: level, Title: title, Description: description})
}

// Mount resolves the quiz and any stored participant. It never fails on API
// errors: they surface as notifications and a start form.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	c.state = StateLoading
	c.recheckAt = c.opts.Now().Add(c.opts.RecheckCooldown)
	c.mu.Unlock()

	var (
		quiz     api.Quiz
		loaded   bool
		resumed  *api.Participant
		storedID string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		quiz, loaded = c.loadQuiz(gctx)
		return nil
	})
	g.Go(func() error {
		id, ok, err := storage.GetString(gctx, c.store, storage.KeyParticipantID)
		if err != nil {
			c.logger.Warn().Err(err).Msg("read stored participant id failed")
			return nil
		}
		if !ok {
			return nil
		}
		storedID = id
		p, err := c.api.GetParticipant(gctx, id)
		if err != nil {
			c.logger.Info().Err(err).Str("participant_id", id).Msg("stored participant not resolvable")
			return nil
		}
		resumed = &p
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.quiz = quiz
	c.quizLoaded = loaded
	c.mu.Unlock()

	if resumed != nil && resumed.QuizID != "" && resumed.QuizID != c.quizID {
		c.logger.Info().Str("participant_id", resumed.ID).Str("participant_quiz", resumed.QuizID).Msg("stored participant belongs to another quiz")
		resumed = nil
	}

	if storedID != "" && resumed == nil {
		c.forgetParticipant(ctx)
		c.notify(LevelError, "Error fetching participant", "Please try again")
	}

	if resumed == nil {
		c.toStartForm()
		return nil
	}

	c.logger.Info().Str("participant_id", resumed.ID).Msg("resuming participant")
	c.enter(ctx, *resumed)
	return nil
}

func (c *Controller) loadQuiz(ctx context.Context) (api.Quiz, bool) {
	quiz, err := c.api.GetQuiz(ctx, c.quizID)
	if err != nil {
		c.logger.Warn().Err(err).Msg("fetch quiz failed")
		message := "Unknown error fetching quiz"
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.StatusError != nil && apiErr.Message != "" {
			message = apiErr.Message
		}
		c.notify(LevelError, "Error fetching quiz", message)
		return placeholderQuiz(), false
	}
	return quiz, true
}

// placeholderQuiz stands in for a quiz that could not be fetched.
func placeholderQuiz() api.Quiz {
	return api.Quiz{Questions: []api.Question{}}
}

func (c *Controller) toStartForm() {
	c.mu.Lock()
	if c.quizLoaded && !c.quiz.IsActive {
		c.state = StateInactive
	} else {
		c.state = StateStartForm
	}
	c.mu.Unlock()
	c.emit()
}

func (c *Controller) forgetParticipant(ctx context.Context) {
	if err := c.store.Remove(ctx, storage.KeyParticipantID); err != nil {
		c.logger.Warn().Err(err).Msg("remove stored participant id failed")
	}
}

func (c *Controller) canStartLocked() bool {
	return c.state == StateStartForm && c.quizLoaded && c.quiz.IsActive && !c.starting
}

// CanStart reports whether the start form's submit control is enabled.
func (c *Controller) CanStart() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canStartLocked()
}

// Start validates the start form and creates the participant.
func (c *Controller) Start(ctx context.Context, name, studentID string) error {
	name = strings.TrimSpace(name)
	studentID = strings.TrimSpace(studentID)

	c.mu.Lock()
	switch {
	case c.state == StateAnswering || c.state == StateCompleted:
		c.mu.Unlock()
		return ErrAlreadyStarted
	case !c.quizLoaded || !c.quiz.IsActive:
		c.mu.Unlock()
		return ErrQuizInactive
	case c.starting:
		c.mu.Unlock()
		return ErrStartInFlight
	}

	fields := map[string]string{}
	if name == "" {
		fields["name"] = "Full name is required"
	}
	if studentID == "" {
		fields["studentId"] = "Student ID is required"
	}
	if len(fields) > 0 {
		c.mu.Unlock()
		return &ValidationError{Fields: fields}
	}

	c.starting = true
	c.mu.Unlock()

	p, err := c.api.CreateParticipant(ctx, api.CreateParticipantRequest{
		Name:      name,
		StudentID: studentID,
		QuizID:    c.quizID,
	})

	c.mu.Lock()
	c.starting = false
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Msg("create participant failed")
		c.notify(LevelError, "Error starting quiz", "Please try again")
		return fmt.Errorf("create participant: %w", err)
	}

	if err := c.store.Set(ctx, storage.KeyParticipantID, p.ID); err != nil {
		c.logger.Warn().Err(err).Msg("persist participant id failed; session will not resume")
	}
	c.logger.Info().Str("participant_id", p.ID).Msg("participant created")

	c.enter(ctx, p)
	return nil
}

// enter hydrates answers and moves to the answering (or completed) state.
func (c *Controller) enter(ctx context.Context, p api.Participant) {
	answers := c.loadAnswers(ctx, p.ID)

	c.mu.Lock()
	participant := p
	c.participant = &participant
	c.answers = answers
	if participant.IsCompleted {
		c.state = StateCompleted
		c.autoFinished = true
	} else {
		c.state = StateAnswering
	}
	if c.quizLoaded {
		c.remaining = Remaining(participant.CreatedAt, c.quiz.Duration, c.opts.Now())
	}
	c.mu.Unlock()

	c.emit()
	// An attempt resumed after its window closed finishes right away.
	c.tick(ctx, c.opts.Now())
}

func (c *Controller) loadAnswers(ctx context.Context, participantID string) map[string]string {
	answers := map[string]string{}
	list, err := c.api.GetParticipantAnswers(ctx, participantID)
	if err != nil {
		c.logger.Warn().Err(err).Msg("fetch participant answers failed")
		c.notify(LevelError, "Error fetching participant answers", "Please try again")
		return answers
	}
	for _, a := range list {
		answers[a.QuestionID] = a.Answer
	}
	return answers
}

// Recheck is the manual retry control of an inactive quiz. It also retries a
// quiz that failed to load while a participant is answering.
func (c *Controller) Recheck(ctx context.Context) error {
	c.mu.Lock()
	if !c.recheckableLocked() {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	now := c.opts.Now()
	if now.Before(c.recheckAt) {
		c.mu.Unlock()
		return ErrRecheckCooldown
	}
	c.recheckAt = now.Add(c.opts.RecheckCooldown)
	answering := c.participant != nil
	gen := c.generation
	c.mu.Unlock()

	quiz, loaded := c.loadQuiz(ctx)

	if answering {
		if loaded {
			c.adoptQuiz(ctx, gen, quiz)
		}
		return nil
	}

	c.mu.Lock()
	if c.state != StateInactive && c.state != StateStartForm {
		c.mu.Unlock()
		return nil
	}
	c.quiz = quiz
	c.quizLoaded = loaded
	c.mu.Unlock()

	c.toStartForm()
	return nil
}

func (c *Controller) recheckableLocked() bool {
	switch c.state {
	case StateInactive, StateStartForm:
		return c.participant == nil
	case StateAnswering:
		return !c.quizLoaded
	}
	return false
}

// adoptQuiz installs a quiz fetched after the participant was resolved and
// restarts the countdown from it.
func (c *Controller) adoptQuiz(ctx context.Context, gen uint64, quiz api.Quiz) {
	c.mu.Lock()
	if gen != c.generation || c.quizLoaded || c.participant == nil {
		c.mu.Unlock()
		return
	}
	c.quiz = quiz
	c.quizLoaded = true
	c.remaining = Remaining(c.participant.CreatedAt, quiz.Duration, c.opts.Now())
	c.mu.Unlock()

	c.logger.Info().Msg("quiz loaded after retry")
	c.emit()
	c.tick(ctx, c.opts.Now())
}

func (c *Controller) lockedLocked() bool {
	if c.participant == nil {
		return true
	}
	if c.participant.IsCompleted {
		return true
	}
	return c.quizLoaded && c.remaining == 0
}

// tick recomputes the countdown and fires the one-shot auto-finish.
func (c *Controller) tick(ctx context.Context, now time.Time) {
	c.mu.Lock()
	if c.participant == nil || !c.quizLoaded {
		c.mu.Unlock()
		return
	}
	remaining := Remaining(c.participant.CreatedAt, c.quiz.Duration, now)
	changed := Urgent(remaining) != Urgent(c.remaining) || (remaining == 0) != (c.remaining == 0)
	c.remaining = remaining

	fire := remaining == 0 && !c.participant.IsCompleted && !c.autoFinished
	if fire {
		c.autoFinished = true
	}
	c.mu.Unlock()

	c.opts.Metrics.SetRemaining(remaining)
	if changed {
		c.emit()
	}
	if fire {
		c.logger.Info().Msg("time expired, submitting")
		c.bg.Add(1)
		go func() {
			defer c.bg.Done()
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.WriteTimeout)
			defer cancel()
			_ = c.finish(ctx, TriggerTimer)
		}()
	}
}

// Finish submits the attempt on the participant's request.
func (c *Controller) Finish(ctx context.Context) error {
	return c.finish(ctx, TriggerManual)
}

// finish is the single submission path for every trigger.
func (c *Controller) finish(ctx context.Context, trigger string) error {
	c.mu.Lock()
	switch {
	case c.participant == nil:
		c.mu.Unlock()
		return ErrNotStarted
	case c.participant.IsCompleted:
		c.mu.Unlock()
		return ErrCompleted
	case c.finishing:
		c.mu.Unlock()
		return ErrFinishInFlight
	}
	c.finishing = true
	participantID := c.participant.ID
	gen := c.generation
	c.mu.Unlock()

	// let answers already typed reach the server first
	c.writes.wait()

	err := c.api.MarkFinished(ctx, participantID)

	c.mu.Lock()
	c.finishing = false
	if gen != c.generation || c.participant == nil {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.mu.Unlock()
		c.opts.Metrics.Finished(trigger, "error")
		c.logger.Warn().Err(err).Str("trigger", trigger).Msg("finish failed")
		c.notify(LevelError, "Error submitting quiz", "Please try again")
		c.emit()
		return fmt.Errorf("mark finished: %w", err)
	}
	c.participant.IsCompleted = true
	c.state = StateCompleted
	c.autoFinished = true
	c.mu.Unlock()

	c.opts.Metrics.Finished(trigger, "ok")
	c.logger.Info().Str("participant_id", participantID).Str("trigger", trigger).Msg("quiz submitted")
	c.notify(LevelInfo, "Quiz submitted", "Your results will be available soon. Thank you for participating!")
	c.emit()
	return nil
}

// poll reconciles the participant with the server and quietly retries a quiz
// that failed to load.
func (c *Controller) poll(ctx context.Context) {
	c.mu.Lock()
	if c.participant == nil {
		c.mu.Unlock()
		return
	}
	participantID := c.participant.ID
	gen := c.generation
	retryQuiz := !c.quizLoaded && !c.participant.IsCompleted
	c.mu.Unlock()

	if retryQuiz {
		quiz, err := c.api.GetQuiz(ctx, c.quizID)
		if err != nil {
			c.logger.Debug().Err(err).Msg("quiz retry failed")
		} else {
			c.adoptQuiz(ctx, gen, quiz)
		}
	}

	p, err := c.api.GetParticipant(ctx, participantID)
	if err != nil {
		c.logger.Debug().Err(err).Msg("participant refresh failed")
		return
	}

	c.mu.Lock()
	if gen != c.generation || c.participant == nil {
		c.mu.Unlock()
		return
	}
	// completion never reverts locally
	p.IsCompleted = p.IsCompleted || c.participant.IsCompleted
	if p.CreatedAt.IsZero() {
		p.CreatedAt = c.participant.CreatedAt
	}
	changed := p.IsCompleted != c.participant.IsCompleted ||
		p.Points != c.participant.Points ||
		p.IsGraded != c.participant.IsGraded
	c.participant = &p
	if p.IsCompleted {
		c.autoFinished = true
		if c.state == StateAnswering {
			c.state = StateCompleted
		}
	}
	c.mu.Unlock()

	if changed {
		c.emit()
	}
}

// Exit abandons the local session without submitting it. Saved answers stay
// on the server.
func (c *Controller) Exit(ctx context.Context) error {
	c.writes.wait()

	if err := c.store.Remove(ctx, storage.KeyParticipantID); err != nil {
		return fmt.Errorf("remove participant id: %w", err)
	}

	c.mu.Lock()
	c.generation++
	c.participant = nil
	c.answers = map[string]string{}
	c.autoFinished = false
	c.remaining = 0
	c.mu.Unlock()

	c.logger.Info().Msg("participant exited quiz")
	c.toStartForm()
	return nil
}

// Flush waits for in-flight answer writes and background submissions.
func (c *Controller) Flush() {
	c.writes.wait()
	c.bg.Wait()
}
