package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors groups the client-side metrics. A nil *Collectors is valid and
// records nothing.
type Collectors struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	answerSaves     *prometheus.CounterVec
	finishes        *prometheus.CounterVec
	remaining       prometheus.Gauge
	tokenRefreshes  *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiztaker",
			Name:      "api_requests_total",
			Help:      "Quiz API requests by route and status.",
		}, []string{"route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quiztaker",
			Name:      "api_request_duration_seconds",
			Help:      "Quiz API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		answerSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiztaker",
			Name:      "answer_saves_total",
			Help:      "Answer upserts by question type and outcome.",
		}, []string{"type", "outcome"}),
		finishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiztaker",
			Name:      "finishes_total",
			Help:      "Finish requests by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quiztaker",
			Name:      "session_remaining_seconds",
			Help:      "Seconds left in the current attempt.",
		}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiztaker",
			Name:      "token_refreshes_total",
			Help:      "Opportunistic access token refreshes by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(c.requests, c.requestDuration, c.answerSaves, c.finishes, c.remaining, c.tokenRefreshes)
	return c
}

func (c *Collectors) ObserveRequest(route, status string, took time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(route, status).Inc()
	c.requestDuration.WithLabelValues(route).Observe(took.Seconds())
}

func (c *Collectors) AnswerSaved(questionType, outcome string) {
	if c == nil {
		return
	}
	c.answerSaves.WithLabelValues(questionType, outcome).Inc()
}

func (c *Collectors) Finished(trigger, outcome string) {
	if c == nil {
		return
	}
	c.finishes.WithLabelValues(trigger, outcome).Inc()
}

func (c *Collectors) SetRemaining(seconds int64) {
	if c == nil {
		return
	}
	c.remaining.Set(float64(seconds))
}

func (c *Collectors) TokenRefreshed(outcome string) {
	if c == nil {
		return
	}
	c.tokenRefreshes.WithLabelValues(outcome).Inc()
}
