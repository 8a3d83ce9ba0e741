package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quiz-session/internal/api"
	"github.com/gokatarajesh/quiz-session/internal/auth"
	"github.com/gokatarajesh/quiz-session/internal/config"
	"github.com/gokatarajesh/quiz-session/internal/session"
	"github.com/gokatarajesh/quiz-session/internal/storage"
)

// quizServer is a minimal in-memory quiz API.
type quizServer struct {
	mu          sync.Mutex
	quiz        api.Quiz
	participant *api.Participant
	answers     map[string]string
	finished    int
	authHeaders []string
}

func (s *quizServer) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("GET /quiz/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		writeJSON(w, map[string]any{"quiz": s.quiz})
	})
	mux.HandleFunc("POST /participant", func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateParticipantRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.participant = &api.Participant{ID: "p1", QuizID: req.QuizID, Name: req.Name, StudentID: req.StudentID, CreatedAt: time.Now()}
		writeJSON(w, map[string]any{"participant": s.participant})
	})
	mux.HandleFunc("GET /participant/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.participant == nil || r.PathValue("id") != s.participant.ID {
			http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"participant": s.participant})
	})
	mux.HandleFunc("GET /participant/{id}/answers", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := []api.ParticipantAnswer{}
		for q, a := range s.answers {
			list = append(list, api.ParticipantAnswer{QuestionID: q, Answer: a})
		}
		writeJSON(w, map[string]any{"answers": list})
	})
	mux.HandleFunc("POST /participant/{id}/question/{questionId}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Answer string `json:"answer"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.answers[r.PathValue("questionId")] = body.Answer
		writeJSON(w, map[string]any{})
	})
	mux.HandleFunc("PUT /participant/{id}/finish", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.finished++
		s.participant.IsCompleted = true
		writeJSON(w, map[string]any{})
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.authHeaders = append(s.authHeaders, r.Header.Get("Authorization"))
		s.mu.Unlock()
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{"user": api.User{ID: "u1", Name: "Grace", Email: "grace@example.com"}})
	})
	return mux
}

func testConfig(t *testing.T, baseURL string) *config.App {
	t.Helper()
	return &config.App{
		Name: "quiztaker",
		Env:  "test",
		API:  config.API{BaseURL: baseURL, Timeout: 2 * time.Second},
		Storage: config.Storage{
			Backend: config.StorageFile,
			Path:    filepath.Join(t.TempDir(), "default.json"),
			Profile: "default",
		},
		Session: config.Session{
			TickInterval:    10 * time.Millisecond,
			PollInterval:    20 * time.Millisecond,
			RecheckCooldown: 0,
		},
	}
}

func newTestApp(t *testing.T, qs *quizServer) *Application {
	t.Helper()
	srv := httptest.NewServer(qs.handler())
	t.Cleanup(srv.Close)

	logger := zerolog.Nop()
	a, err := New(context.Background(), testConfig(t, srv.URL), Options{Logger: &logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestRunSessionTakesQuizEndToEnd(t *testing.T) {
	qs := &quizServer{
		quiz: api.Quiz{
			ID: "quiz-1", Title: "Geography", Duration: 10, IsActive: true,
			Questions: []api.Question{
				{ID: "q1", Type: api.QuestionChoice, Prompt: "Capital of France?", Choices: []string{"Paris", "Rome"}},
				{ID: "q2", Type: api.QuestionAnswer, Prompt: "Describe the Seine."},
			},
		},
		answers: map[string]string{},
	}
	a := newTestApp(t, qs)
	ctrl := a.NewSession("quiz-1", nil)

	err := a.RunSession(context.Background(), ctrl, func(ctx context.Context) error {
		if err := ctrl.Start(ctx, "Ada", "s-1"); err != nil {
			return err
		}
		if err := ctrl.SelectChoice("q1", "Paris"); err != nil {
			return err
		}
		if err := ctrl.EditText("q2", " A river "); err != nil {
			return err
		}
		if err := ctrl.Blur("q2"); err != nil {
			return err
		}
		return ctrl.Finish(ctx)
	})
	require.NoError(t, err)

	qs.mu.Lock()
	defer qs.mu.Unlock()
	assert.Equal(t, map[string]string{"q1": "Paris", "q2": "A river"}, qs.answers)
	assert.Equal(t, 1, qs.finished)
	assert.Equal(t, session.StateCompleted, ctrl.View().State)

	id, ok, err := storage.GetString(context.Background(), a.Store(), storage.KeyParticipantID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p1", id)
}

func TestRequireSignInWithoutToken(t *testing.T) {
	qs := &quizServer{answers: map[string]string{}}
	a := newTestApp(t, qs)

	_, err := a.RequireSignIn(context.Background())
	assert.ErrorIs(t, err, auth.ErrSignInRequired)
	assert.False(t, a.Auth().Session().IsAuthenticated())
}

func TestRedisBackendFailsFast(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Storage.Backend = config.StorageRedis
	cfg.Redis.Addr = "127.0.0.1:1"

	logger := zerolog.Nop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := New(ctx, cfg, Options{Logger: &logger})
	assert.ErrorContains(t, err, "connect redis")
}
