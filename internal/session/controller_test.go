package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quiz-session/internal/api"
	"github.com/gokatarajesh/quiz-session/internal/storage"
)

type savedAnswer struct {
	participantID string
	questionID    string
	answer        string
}

// fakeAPI is an in-memory quiz API that counts calls.
type fakeAPI struct {
	mu sync.Mutex

	quiz         api.Quiz
	quizErr      error
	participants map[string]api.Participant
	answers      map[string][]api.ParticipantAnswer
	nextID       int
	now          func() time.Time

	getParticipantErr error
	saveErr           error
	finishErr         error
	saveGate          chan struct{}
	saveStarted       int

	createCalls int
	saves       []savedAnswer
	finishCalls int
	pollCalls   int
}

func newFakeAPI(quiz api.Quiz, now func() time.Time) *fakeAPI {
	return &fakeAPI{
		quiz:         quiz,
		participants: map[string]api.Participant{},
		answers:      map[string][]api.ParticipantAnswer{},
		now:          now,
	}
}

func (f *fakeAPI) GetQuiz(_ context.Context, quizID string) (api.Quiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quizErr != nil {
		return api.Quiz{}, f.quizErr
	}
	return f.quiz, nil
}

func (f *fakeAPI) CreateParticipant(_ context.Context, req api.CreateParticipantRequest) (api.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.nextID++
	p := api.Participant{
		ID:        "p" + string(rune('0'+f.nextID)),
		QuizID:    req.QuizID,
		Name:      req.Name,
		StudentID: req.StudentID,
		CreatedAt: f.now(),
	}
	f.participants[p.ID] = p
	return p, nil
}

func (f *fakeAPI) GetParticipant(_ context.Context, id string) (api.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollCalls++
	if f.getParticipantErr != nil {
		return api.Participant{}, f.getParticipantErr
	}
	p, ok := f.participants[id]
	if !ok {
		return api.Participant{}, api.ErrNotFound
	}
	return p, nil
}

func (f *fakeAPI) GetParticipantAnswers(_ context.Context, id string) ([]api.ParticipantAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.ParticipantAnswer(nil), f.answers[id]...), nil
}

func (f *fakeAPI) SaveAnswer(_ context.Context, participantID, questionID, answer string) error {
	f.mu.Lock()
	gate := f.saveGate
	f.saveStarted++
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, savedAnswer{participantID, questionID, answer})
	if f.saveErr != nil {
		return f.saveErr
	}
	list := f.answers[participantID]
	for i := range list {
		if list[i].QuestionID == questionID {
			list[i].Answer = answer
			return nil
		}
	}
	f.answers[participantID] = append(list, api.ParticipantAnswer{
		ID:            "a-" + questionID,
		ParticipantID: participantID,
		QuizID:        f.quiz.ID,
		QuestionID:    questionID,
		Answer:        answer,
	})
	return nil
}

func (f *fakeAPI) MarkFinished(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishCalls++
	if f.finishErr != nil {
		return f.finishErr
	}
	p := f.participants[id]
	p.IsCompleted = true
	f.participants[id] = p
	return nil
}

func (f *fakeAPI) savesCopy() []savedAnswer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]savedAnswer(nil), f.saves...)
}

func (f *fakeAPI) finishes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finishCalls
}

func (f *fakeAPI) creates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.notes))
	for _, n := range r.notes {
		out = append(out, n.Title)
	}
	return out
}

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func sampleQuiz(active bool) api.Quiz {
	return api.Quiz{
		ID:       "quiz-1",
		Title:    "Geography",
		Duration: 10,
		IsActive: active,
		Questions: []api.Question{
			{ID: "q-choice", Type: api.QuestionChoice, Prompt: "Capital of France?", Choices: []string{"Paris", "Rome"}, CorrectChoices: []string{"Paris"}, Points: 1},
			{ID: "q-text", Type: api.QuestionAnswer, Prompt: "Describe the Seine.", Points: 5},
		},
	}
}

type harness struct {
	api      *fakeAPI
	store    storage.Store
	clock    *clock
	notes    *recorder
	ctrl     *Controller
	quizID   string
	cooldown time.Duration
}

func newHarness(t *testing.T, quiz api.Quiz) *harness {
	t.Helper()
	h := &harness{
		clock:  &clock{now: t0},
		store:  storage.NewFileStore(filepath.Join(t.TempDir(), "default.json")),
		notes:  &recorder{},
		quizID: "quiz-1",
	}
	h.api = newFakeAPI(quiz, h.clock.Now)
	h.ctrl = h.newController()
	return h
}

// newController simulates a page reload: same store, API and clock.
func (h *harness) newController() *Controller {
	return New(h.quizID, h.api, h.store, Options{
		Now:             h.clock.Now,
		Notifier:        h.notes,
		RecheckCooldown: h.cooldown,
	}, zerolog.Nop())
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.ctrl.Mount(ctx))
	require.NoError(t, h.ctrl.Start(ctx, "Ada Lovelace", "s-42"))
	require.Equal(t, StateAnswering, h.ctrl.View().State)
}

func TestMountWithoutStoredParticipantShowsStartForm(t *testing.T) {
	h := newHarness(t, sampleQuiz(true))

	require.NoError(t, h.ctrl.Mount(context.Background()))

	v := h.ctrl.View()
	assert.Equal(t, StateStartForm, v.State)
	assert.True(t, v.CanStart)
	assert.Nil(t, v.Participant)
	assert.True(t, v.Locked)
}

func TestStartValidatesFieldsWithoutNetwork(t *testing.T) {
	h := newHarness(t, sampleQuiz(true))
	require.NoError(t, h.ctrl.Mount(context.Background()))

	err := h.ctrl.Start(context.Background(), "  ", "")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "studentId")
	assert.Equal(t, 0, h.api.creates())
	assert.Equal(t, StateStartForm, h.ctrl.View().State)
}

func TestStartStoresParticipantAndEntersAnswering(t *testing.T) {
	h := newHarness(t, sampleQuiz(true))
	h.start(t)

	id, ok, err := storage.GetString(context.Background(), h.store, storage.KeyParticipantID)
	require.NoError(t, err)
	assert.True(t, ok)

	v := h.ctrl.View()
	require.NotNil(t, v.Participant)
	assert.Equal(t, id, v.Participant.ID)
	assert.Equal(t, "Ada Lovelace", v.Participant.Name)
	assert.Equal(t, int64(600), v.Remaining)
	assert.False(t, v.Locked)
	assert.True(t, v.CanFinish)

	assert.ErrorIs(t, h.ctrl.Start(context.Background(), "Ada", "s-42"), ErrAlreadyStarted)
	assert.Equal(t, 1, h.api.creates())
}

// Property 1.
func TestResumeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	h.start(t)

	require.NoError(t, h.ctrl.SelectChoice("q-choice", "Paris"))
	require.NoError(t, h.ctrl.EditText("q-text", "  It flows through Paris. "))
	require.NoError(t, h.ctrl.Blur("q-text"))
	h.ctrl.Flush()

	want := map[string]string{
		"q-choice": "Paris",
		"q-text":   "It flows through Paris.",
	}

	for i := 0; i < 2; i++ {
		h.clock.Set(t0.Add(time.Duration(i+1) * time.Minute))
		h.ctrl = h.newController()
		require.NoError(t, h.ctrl.Mount(ctx))

		v := h.ctrl.View()
		assert.Equal(t, StateAnswering, v.State)
		assert.Equal(t, want, v.Answers)
	}
	assert.Equal(t, 1, h.api.creates())
}

func TestResumeWithUnknownParticipantClearsStoredID(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	require.NoError(t, h.store.Set(ctx, storage.KeyParticipantID, "ghost"))

	require.NoError(t, h.ctrl.Mount(ctx))

	assert.Equal(t, StateStartForm, h.ctrl.View().State)
	_, ok, err := storage.GetString(ctx, h.store, storage.KeyParticipantID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, h.notes.titles(), "Error fetching participant")
}

func TestResumeParticipantOfAnotherQuizIsStale(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	h.api.participants["other"] = api.Participant{ID: "other", QuizID: "quiz-2", CreatedAt: t0}
	require.NoError(t, h.store.Set(ctx, storage.KeyParticipantID, "other"))

	require.NoError(t, h.ctrl.Mount(ctx))

	assert.Equal(t, StateStartForm, h.ctrl.View().State)
	_, ok, _ := storage.GetString(ctx, h.store, storage.KeyParticipantID)
	assert.False(t, ok)
}

func TestQuizFetchFailureYieldsPlaceholder(t *testing.T) {
	h := newHarness(t, sampleQuiz(true))
	h.api.quizErr = errors.New("connection refused")

	require.NoError(t, h.ctrl.Mount(context.Background()))

	v := h.ctrl.View()
	assert.Equal(t, StateStartForm, v.State)
	assert.Empty(t, v.Quiz.Questions)
	assert.False(t, v.CanStart)
	assert.Equal(t, []string{"Error fetching quiz"}, h.notes.titles())
	assert.ErrorIs(t, h.ctrl.Start(context.Background(), "Ada", "s-42"), ErrQuizInactive)
}

func (h *harness) setQuizErr(err error) {
	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	h.api.quizErr = err
}

// resumeWithoutQuiz reloads one minute into an attempt while the quiz
// cannot be fetched.
func (h *harness) resumeWithoutQuiz(t *testing.T) {
	t.Helper()
	h.start(t)
	h.clock.Set(t0.Add(time.Minute))
	h.setQuizErr(errors.New("connection reset"))
	h.ctrl = h.newController()
	require.NoError(t, h.ctrl.Mount(context.Background()))
}

func TestResumeWithoutQuizIsNotExpired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	h.resumeWithoutQuiz(t)

	h.ctrl.tick(ctx, h.clock.Now())
	h.ctrl.Flush()

	v := h.ctrl.View()
	assert.Equal(t, StateAnswering, v.State)
	assert.False(t, v.QuizLoaded)
	assert.False(t, v.Expired())
	assert.False(t, v.Locked)
	assert.True(t, v.RecheckAvailable)
	assert.Equal(t, 0, h.api.finishes())
}

func TestRecheckLoadsQuizForResumedParticipant(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	h.resumeWithoutQuiz(t)

	require.NoError(t, h.ctrl.Recheck(ctx))
	assert.False(t, h.ctrl.View().QuizLoaded)

	h.setQuizErr(nil)
	require.NoError(t, h.ctrl.Recheck(ctx))

	v := h.ctrl.View()
	assert.True(t, v.QuizLoaded)
	assert.Equal(t, int64(9*60), v.Remaining)
	assert.False(t, v.Locked)
	assert.False(t, v.RecheckAvailable)
	assert.Len(t, v.Quiz.Questions, 2)
	require.NoError(t, h.ctrl.SelectChoice("q-choice", "Paris"))
	h.ctrl.Flush()
	assert.ErrorIs(t, h.ctrl.Recheck(ctx), ErrAlreadyStarted)
	assert.Equal(t, 0, h.api.finishes())
}

func TestPollRetriesQuizForResumedParticipant(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	h.resumeWithoutQuiz(t)
	notes := len(h.notes.titles())

	h.ctrl.poll(ctx)
	assert.False(t, h.ctrl.View().QuizLoaded)
	assert.Len(t, h.notes.titles(), notes)

	h.setQuizErr(nil)
	h.ctrl.poll(ctx)

	v := h.ctrl.View()
	assert.True(t, v.QuizLoaded)
	assert.Equal(t, int64(9*60), v.Remaining)
	require.NoError(t, h.ctrl.EditText("q-text", "A river"))
}

func TestQuizLoadedLateStillFinishesExpiredAttempt(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	h.resumeWithoutQuiz(t)

	h.clock.Set(t0.Add(11 * time.Minute))
	h.setQuizErr(nil)
	h.ctrl.poll(ctx)
	h.ctrl.Flush()

	v := h.ctrl.View()
	assert.Equal(t, StateCompleted, v.State)
	assert.True(t, v.Locked)
	assert.Equal(t, 1, h.api.finishes())
}

// Property 2.
func TestRemainingSurvivesReloadWithoutDrift(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	h.start(t)

	// continuous ticking, one per second for 95 seconds
	for i := 1; i <= 95; i++ {
		h.clock.Set(t0.Add(time.Duration(i) * time.Second))
		h.ctrl.tick(ctx, h.clock.Now())
	}
	continuous := h.ctrl.View().Remaining

	reloaded := h.newController()
	require.NoError(t, reloaded.Mount(ctx))

	assert.Equal(t, int64(10*60-95), continuous)
	assert.Equal(t, continuous, reloaded.View().Remaining)
}

func TestUrgentStateNearTheEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	h.start(t)

	var urgentViews int
	h.ctrl.OnChange(func(v View) {
		if v.Urgent {
			urgentViews++
		}
	})

	h.clock.Set(t0.Add(8*time.Minute + 59*time.Second))
	h.ctrl.tick(ctx, h.clock.Now())
	assert.False(t, h.ctrl.View().Urgent)

	h.clock.Set(t0.Add(9 * time.Minute))
	h.ctrl.tick(ctx, h.clock.Now())
	v := h.ctrl.View()
	assert.True(t, v.Urgent)
	assert.Equal(t, "1:00", v.Clock())
	assert.Equal(t, 1, urgentViews)
}

// Property 3.
func TestAutoFinishFiresOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	h.start(t)

	h.clock.Set(t0.Add(10 * time.Minute))
	for i := 0; i < 3; i++ {
		h.ctrl.tick(ctx, h.clock.Now().Add(time.Duration(i)*time.Second))
	}
	h.ctrl.Flush()

	assert.Equal(t, 1, h.api.finishes())
	v := h.ctrl.View()
	assert.Equal(t, StateCompleted, v.State)
	assert.True(t, v.Locked)
}

func TestAutoFinishDoesNotRetryAfterFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	h.start(t)
	h.api.finishErr = errors.New("server down")

	h.clock.Set(t0.Add(11 * time.Minute))
	h.ctrl.tick(ctx, h.clock.Now())
	h.ctrl.Flush()
	h.ctrl.tick(ctx, h.clock.Now())
	h.ctrl.Flush()

	assert.Equal(t, 1, h.api.finishes())
	assert.Equal(t, StateAnswering, h.ctrl.View().State)
	assert.Contains(t, h.notes.titles(), "Error submitting quiz")

	// the manual control still works
	h.api.finishErr = nil
	require.NoError(t, h.ctrl.Finish(ctx))
	assert.Equal(t, StateCompleted, h.ctrl.View().State)
}

func TestResumeAfterWindowClosedFinishesAtMount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	h.start(t)

	h.clock.Set(t0.Add(2 * time.Hour))
	h.ctrl = h.newController()
	require.NoError(t, h.ctrl.Mount(ctx))
	h.ctrl.Flush()

	assert.Equal(t, 1, h.api.finishes())
	assert.Equal(t, StateCompleted, h.ctrl.View().State)
}

func TestResumeCompletedParticipantDoesNotFinishAgain(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	h.start(t)
	require.NoError(t, h.ctrl.Finish(ctx))

	h.clock.Set(t0.Add(2 * time.Hour))
	h.ctrl = h.newController()
	require.NoError(t, h.ctrl.Mount(ctx))
	h.ctrl.Flush()

	assert.Equal(t, 1, h.api.finishes())
	assert.Equal(t, StateCompleted, h.ctrl.View().State)
}

// Property 4.
func TestChoicePersistsImmediately(t *testing.T) {
	h := newHarness(t, sampleQuiz(true))
	h.start(t)
	participantID := h.ctrl.View().Participant.ID

	require.NoError(t, h.ctrl.SelectChoice("q-choice", "Rome"))
	h.ctrl.Flush()

	assert.Equal(t, []savedAnswer{{participantID, "q-choice", "Rome"}}, h.api.savesCopy())
	assert.Equal(t, "Rome", h.ctrl.Answer("q-choice"))
}

func TestTextPersistsOnBlurOnly(t *testing.T) {
	h := newHarness(t, sampleQuiz(true))
	h.start(t)
	participantID := h.ctrl.View().Participant.ID

	for _, partial := range []string{"T", "Th", "The Seine ", "  The Seine flows west.  "} {
		require.NoError(t, h.ctrl.EditText("q-text", partial))
	}
	h.ctrl.Flush()
	assert.Empty(t, h.api.savesCopy())

	require.NoError(t, h.ctrl.Blur("q-text"))
	h.ctrl.Flush()

	assert.Equal(t, []savedAnswer{{participantID, "q-text", "The Seine flows west."}}, h.api.savesCopy())
	assert.Equal(t, "  The Seine flows west.  ", h.ctrl.Answer("q-text"))
}

func TestBlankBlurSendsNothing(t *testing.T) {
	h := newHarness(t, sampleQuiz(true))
	h.start(t)

	require.NoError(t, h.ctrl.Blur("q-text"))
	require.NoError(t, h.ctrl.EditText("q-text", "   \n\t"))
	require.NoError(t, h.ctrl.Blur("q-text"))
	h.ctrl.Flush()

	assert.Empty(t, h.api.savesCopy())
}

func TestEditsRejectWrongQuestionOrChoice(t *testing.T) {
	h := newHarness(t, sampleQuiz(true))
	h.start(t)

	assert.ErrorIs(t, h.ctrl.SelectChoice("q-choice", "Berlin"), ErrUnknownChoice)
	assert.ErrorIs(t, h.ctrl.SelectChoice("q-text", "Paris"), ErrWrongQuestionType)
	assert.ErrorIs(t, h.ctrl.EditText("q-choice", "Paris"), ErrWrongQuestionType)
	assert.ErrorIs(t, h.ctrl.EditText("missing", "x"), ErrUnknownQuestion)
	h.ctrl.Flush()
	assert.Empty(t, h.api.savesCopy())
}

func TestSaveFailureKeepsLocalAnswer(t *testing.T) {
	h := newHarness(t, sampleQuiz(true))
	h.start(t)
	h.api.saveErr = errors.New("timeout")

	require.NoError(t, h.ctrl.SelectChoice("q-choice", "Paris"))
	h.ctrl.Flush()

	assert.Len(t, h.api.savesCopy(), 1)
	assert.Equal(t, "Paris", h.ctrl.Answer("q-choice"))
	assert.Contains(t, h.notes.titles(), "Error saving answer")
}

func TestQueuedWritesForSameQuestionAreSerialized(t *testing.T) {
	h := newHarness(t, sampleQuiz(true))
	h.start(t)

	gate := make(chan struct{})
	h.api.mu.Lock()
	h.api.saveGate = gate
	h.api.mu.Unlock()

	require.NoError(t, h.ctrl.SelectChoice("q-choice", "Rome"))
	// wait until the first write holds the question's slot
	require.Eventually(t, func() bool {
		h.api.mu.Lock()
		defer h.api.mu.Unlock()
		return h.api.saveStarted == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, h.ctrl.SelectChoice("q-choice", "Paris"))
	require.NoError(t, h.ctrl.SelectChoice("q-choice", "Rome"))
	require.NoError(t, h.ctrl.SelectChoice("q-choice", "Paris"))
	close(gate)
	h.ctrl.Flush()

	saves := h.api.savesCopy()
	require.Len(t, saves, 2)
	assert.Equal(t, "Rome", saves[0].answer)
	assert.Equal(t, "Paris", saves[1].answer)
}

// Property 5.
func TestLockoutAfterManualFinish(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	h.start(t)

	require.NoError(t, h.ctrl.Finish(ctx))
	assert.ErrorIs(t, h.ctrl.Finish(ctx), ErrCompleted)

	assert.ErrorIs(t, h.ctrl.SelectChoice("q-choice", "Paris"), ErrLocked)
	assert.ErrorIs(t, h.ctrl.EditText("q-text", "late"), ErrLocked)
	assert.ErrorIs(t, h.ctrl.Blur("q-text"), ErrLocked)
	h.ctrl.Flush()

	assert.Empty(t, h.api.savesCopy())
	assert.Equal(t, 1, h.api.finishes())
	v := h.ctrl.View()
	assert.True(t, v.Locked)
	assert.False(t, v.CanFinish)
}

func TestLockoutAfterServerSideCompletion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	h.start(t)
	participantID := h.ctrl.View().Participant.ID

	h.api.mu.Lock()
	p := h.api.participants[participantID]
	p.IsCompleted = true
	p.IsGraded = true
	p.Points = 4
	h.api.participants[participantID] = p
	h.api.mu.Unlock()

	h.ctrl.poll(ctx)

	v := h.ctrl.View()
	assert.Equal(t, StateCompleted, v.State)
	assert.True(t, v.Locked)
	assert.Equal(t, 4.0, v.Participant.Points)
	assert.ErrorIs(t, h.ctrl.SelectChoice("q-choice", "Paris"), ErrLocked)

	// the timer must not submit a completed participant
	h.clock.Set(t0.Add(time.Hour))
	h.ctrl.tick(ctx, h.clock.Now())
	h.ctrl.Flush()
	assert.Equal(t, 0, h.api.finishes())
	assert.Empty(t, h.api.savesCopy())
}

func TestLockoutWhenTimeIsUp(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	h.start(t)
	h.api.finishErr = errors.New("server down")

	h.clock.Set(t0.Add(10 * time.Minute))
	h.ctrl.tick(ctx, h.clock.Now())
	h.ctrl.Flush()

	v := h.ctrl.View()
	assert.True(t, v.Expired())
	assert.ErrorIs(t, h.ctrl.SelectChoice("q-choice", "Paris"), ErrLocked)
}

// Property 6.
func TestInactiveQuizGatesStart(t *testing.T) {
	h := newHarness(t, sampleQuiz(false))
	require.NoError(t, h.ctrl.Mount(context.Background()))

	v := h.ctrl.View()
	assert.Equal(t, StateInactive, v.State)
	assert.False(t, v.CanStart)
	assert.False(t, h.ctrl.CanStart())

	assert.ErrorIs(t, h.ctrl.Start(context.Background(), "Ada", "s-42"), ErrQuizInactive)
	assert.Equal(t, 0, h.api.creates())
}

func TestRecheckActivatesQuizAfterCooldown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(false))
	h.cooldown = 3 * time.Second
	h.ctrl = h.newController()
	require.NoError(t, h.ctrl.Mount(ctx))

	assert.False(t, h.ctrl.View().RecheckAvailable)
	assert.ErrorIs(t, h.ctrl.Recheck(ctx), ErrRecheckCooldown)

	h.api.mu.Lock()
	h.api.quiz.IsActive = true
	h.api.mu.Unlock()
	h.clock.Set(t0.Add(3 * time.Second))
	assert.True(t, h.ctrl.View().RecheckAvailable)

	require.NoError(t, h.ctrl.Recheck(ctx))
	assert.Equal(t, StateStartForm, h.ctrl.View().State)
	assert.True(t, h.ctrl.CanStart())
}

func TestExitAbandonsWithoutFinishing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleQuiz(true))
	h.start(t)
	participantID := h.ctrl.View().Participant.ID
	require.NoError(t, h.ctrl.SelectChoice("q-choice", "Paris"))

	require.NoError(t, h.ctrl.Exit(ctx))

	v := h.ctrl.View()
	assert.Equal(t, StateStartForm, v.State)
	assert.Nil(t, v.Participant)
	assert.Empty(t, v.Answers)
	assert.Equal(t, 0, h.api.finishes())

	_, ok, err := storage.GetString(ctx, h.store, storage.KeyParticipantID)
	require.NoError(t, err)
	assert.False(t, ok)

	// server-side answers survive
	answers, err := h.api.GetParticipantAnswers(ctx, participantID)
	require.NoError(t, err)
	assert.Len(t, answers, 1)

	// starting again creates a new participant
	require.NoError(t, h.ctrl.Start(ctx, "Ada Lovelace", "s-42"))
	assert.Equal(t, 2, h.api.creates())
	assert.Empty(t, h.ctrl.View().Answers)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, sampleQuiz(true))
	h.ctrl = New(h.quizID, h.api, h.store, Options{
		Now:          h.clock.Now,
		TickInterval: time.Millisecond,
		PollInterval: 2 * time.Millisecond,
	}, zerolog.Nop())
	h.start(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.ctrl.Run(ctx) }()

	require.Eventually(t, func() bool {
		h.api.mu.Lock()
		defer h.api.mu.Unlock()
		return h.api.pollCalls > 2
	}, time.Second, time.Millisecond)

	h.clock.Set(t0.Add(10 * time.Minute))
	require.Eventually(t, func() bool { return h.api.finishes() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	h.ctrl.Flush()
	assert.Equal(t, 1, h.api.finishes())
	assert.Equal(t, StateCompleted, h.ctrl.View().State)
}
