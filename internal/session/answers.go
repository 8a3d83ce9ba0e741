package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/gokatarajesh/quiz-session/internal/api"
)

// editableLocked returns the question if the participant may change its answer.
// Callers hold c.mu.
func (c *Controller) editableLocked(questionID string, want api.QuestionType) (api.Question, error) {
	if c.participant == nil {
		return api.Question{}, ErrNotStarted
	}
	if c.lockedLocked() {
		return api.Question{}, ErrLocked
	}
	q, ok := c.quiz.Question(questionID)
	if !ok {
		return api.Question{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if q.Type != want {
		return api.Question{}, fmt.Errorf("%w: %s is a %s question", ErrWrongQuestionType, questionID, q.Type)
	}
	return q, nil
}

// SelectChoice records a choice and saves it immediately.
func (c *Controller) SelectChoice(questionID, value string) error {
	c.mu.Lock()
	q, err := c.editableLocked(questionID, api.QuestionChoice)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if !q.HasChoice(value) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownChoice, value)
	}
	c.answers[questionID] = value
	participantID := c.participant.ID
	gen := c.generation
	c.mu.Unlock()

	c.persist(gen, participantID, q, value)
	return nil
}

// EditText changes a free-text answer locally. Nothing is sent until Blur.
func (c *Controller) EditText(questionID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.editableLocked(questionID, api.QuestionAnswer); err != nil {
		return err
	}
	c.answers[questionID] = text
	return nil
}

// Blur saves a free-text answer when its input loses focus. Blank answers
// are not sent.
func (c *Controller) Blur(questionID string) error {
	c.mu.Lock()
	q, err := c.editableLocked(questionID, api.QuestionAnswer)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	value := strings.TrimSpace(c.answers[questionID])
	participantID := c.participant.ID
	gen := c.generation
	c.mu.Unlock()

	if value == "" {
		return nil
	}
	c.persist(gen, participantID, q, value)
	return nil
}

// Answer returns the local answer for a question.
func (c *Controller) Answer(questionID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers[questionID]
}

// persist is fire-and-forget: failures are reported, never retried, and
// local state stays as the participant left it.
func (c *Controller) persist(gen uint64, participantID string, q api.Question, value string) {
	kind := string(q.Type)
	send := func() {
		c.mu.Lock()
		stale := gen != c.generation || c.participant == nil || c.participant.IsCompleted
		c.mu.Unlock()
		if stale {
			c.opts.Metrics.AnswerSaved(kind, "dropped")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.WriteTimeout)
		defer cancel()

		if err := c.api.SaveAnswer(ctx, participantID, q.ID, value); err != nil {
			c.opts.Metrics.AnswerSaved(kind, "error")
			c.logger.Warn().Err(err).Str("question_id", q.ID).Msg("save answer failed")
			c.notify(LevelError, "Error saving answer", "Your answer is kept locally. Please try again")
			return
		}
		c.opts.Metrics.AnswerSaved(kind, "ok")
		c.logger.Debug().Str("question_id", q.ID).Msg("answer saved")
	}
	skip := func() {
		c.opts.Metrics.AnswerSaved(kind, "superseded")
	}
	c.writes.enqueue(q.ID, send, skip)
}
