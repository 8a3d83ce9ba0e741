package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-session/internal/logging"
	"github.com/gokatarajesh/quiz-session/internal/session"
	httperrors "github.com/gokatarajesh/quiz-session/pkg/http/errors"
)

// Pinger is a dependency whose reachability /v1/ping reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ViewSource returns the running session's view, if a quiz is being taken.
type ViewSource func() (session.View, bool)

// Options wires the status server. Nil fields disable the matching route.
type Options struct {
	Addr     string
	Gatherer prometheus.Gatherer
	Views    ViewSource
	Pingers  map[string]Pinger
	Timeout  time.Duration
}

// SessionStatus is the JSON body of /v1/session.
type SessionStatus struct {
	State         string `json:"state"`
	QuizID        string `json:"quizId,omitempty"`
	QuizTitle     string `json:"quizTitle,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`
	Remaining     int64  `json:"remaining"`
	Clock         string `json:"clock"`
	Urgent        bool   `json:"urgent"`
	Locked        bool   `json:"locked"`
	Completed     bool   `json:"completed"`
	Answered      int    `json:"answered"`
	Questions     int    `json:"questions"`
}

// NewSessionStatus flattens a view for the status endpoint.
func NewSessionStatus(v session.View) SessionStatus {
	st := SessionStatus{
		State:     v.State.String(),
		QuizID:    v.Quiz.ID,
		QuizTitle: v.Quiz.Title,
		Remaining: v.Remaining,
		Clock:     v.Clock(),
		Urgent:    v.Urgent,
		Locked:    v.Locked,
		Questions: len(v.Quiz.Questions),
	}
	if v.Participant != nil {
		st.ParticipantID = v.Participant.ID
		st.Completed = v.Participant.IsCompleted
	}
	for _, a := range v.Answers {
		if a != "" {
			st.Answered++
		}
	}
	return st
}

// NewHTTPServer wires the local status routes: health, metrics, the current
// session and an upstream ping.
func NewHTTPServer(opts Options, logger zerolog.Logger) *http.Server {
	logger = logger.With().Str("component", "status_server").Logger()
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("GET /v1/session", func(w http.ResponseWriter, r *http.Request) {
		if opts.Views == nil {
			httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "no quiz is being taken")
			return
		}
		view, ok := opts.Views()
		if !ok {
			httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "no quiz is being taken")
			return
		}
		writeJSON(w, http.StatusOK, NewSessionStatus(view))
	})

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(logging.IntoContext(r.Context(), logger), opts.Timeout)
		defer cancel()

		results := pingDependencies(ctx, opts.Pingers)
		status := http.StatusOK
		for name, res := range results {
			if res != "ok" {
				log := logging.FromContext(ctx)
				log.Error().Str("dependency", name).Str("error", res).Msg("dependency ping failed")
				status = http.StatusBadGateway
			}
		}
		writeJSON(w, status, map[string]any{"pong": status == http.StatusOK, "dependencies": results})
	})

	return &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func pingDependencies(ctx context.Context, pingers map[string]Pinger) map[string]string {
	names := make([]string, 0, len(pingers))
	for name := range pingers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]string, len(names))
	for _, name := range names {
		if err := pingers[name].Ping(ctx); err != nil {
			out[name] = err.Error()
			continue
		}
		out[name] = "ok"
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
