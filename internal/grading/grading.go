package grading

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-session/internal/api"
)

// API is the part of the REST client used for grading.
type API interface {
	GetQuizParticipants(ctx context.Context, quizID string) (api.QuizParticipants, error)
	GetParticipantResults(ctx context.Context, quizID, participantID string) (api.ParticipantResults, error)
	ReviewAnswer(ctx context.Context, quizID, participantID, answerID string, review api.ReviewRequest) error
}

// Status of one question in a participant's results.
type Status string

const (
	StatusUnanswered Status = "unanswered"
	StatusPending    Status = "pending"
	StatusCorrect    Status = "correct"
	StatusIncorrect  Status = "incorrect"
)

var (
	ErrNegativePoints  = errors.New("points cannot be negative")
	ErrUnknownAnswer   = errors.New("answer not found in participant results")
	ErrNotReviewable   = errors.New("only free-text answers are reviewed")
	ErrNotYetSubmitted = errors.New("participant has not submitted yet")
)

// Line is one question of a summary.
type Line struct {
	Index    int
	Question api.Question
	AnswerID string
	Answer   string
	Status   Status
	Awarded  float64
}

// Summary is a participant's graded results.
type Summary struct {
	Participant api.Participant
	Quiz        api.Quiz
	Lines       []Line
	Awarded     float64
	Possible    float64
	Pending     int
}

// Summarize classifies each result and totals the points awarded so far.
func Summarize(results api.ParticipantResults) Summary {
	s := Summary{
		Participant: results.Participant,
		Quiz:        results.Quiz,
		Lines:       make([]Line, 0, len(results.Results)),
	}
	for i, r := range results.Results {
		line := Line{Index: i + 1, Question: r.Question, Status: StatusUnanswered}
		s.Possible += r.Question.Points
		if r.Answer != nil {
			line.AnswerID = r.Answer.ID
			line.Answer = r.Answer.Answer
			switch {
			case r.Answer.IsCorrect == nil:
				line.Status = StatusPending
				s.Pending++
			case *r.Answer.IsCorrect:
				line.Status = StatusCorrect
			default:
				line.Status = StatusIncorrect
			}
			if r.Answer.Points != nil {
				line.Awarded = *r.Answer.Points
			}
		}
		s.Awarded += line.Awarded
		s.Lines = append(s.Lines, line)
	}
	return s
}

// Service fetches results and records reviews.
type Service struct {
	api    API
	logger zerolog.Logger
}

func NewService(client API, logger zerolog.Logger) *Service {
	return &Service{
		api:    client,
		logger: logger.With().Str("component", "grading").Logger(),
	}
}

// Participants lists everyone who attempted a quiz.
func (s *Service) Participants(ctx context.Context, quizID string) (api.QuizParticipants, error) {
	out, err := s.api.GetQuizParticipants(ctx, quizID)
	if err != nil {
		return api.QuizParticipants{}, fmt.Errorf("list participants of %s: %w", quizID, err)
	}
	return out, nil
}

// Results fetches one participant's results, retrying once on failure. A
// missing participant is not retried.
func (s *Service) Results(ctx context.Context, quizID, participantID string) (Summary, error) {
	results, err := s.api.GetParticipantResults(ctx, quizID, participantID)
	if err != nil && !errors.Is(err, api.ErrNotFound) && ctx.Err() == nil {
		s.logger.Debug().Err(err).Str("participant_id", participantID).Msg("results fetch failed, retrying")
		results, err = s.api.GetParticipantResults(ctx, quizID, participantID)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("results of %s: %w", participantID, err)
	}
	return Summarize(results), nil
}

// Review grades one free-text answer. Marking it correct awards the
// question's points and incorrect awards none, unless points is given.
func (s *Service) Review(ctx context.Context, quizID, participantID, answerID string, correct bool, points *float64) (Summary, error) {
	if points != nil && *points < 0 {
		return Summary{}, ErrNegativePoints
	}

	summary, err := s.Results(ctx, quizID, participantID)
	if err != nil {
		return Summary{}, err
	}
	if !summary.Participant.IsCompleted {
		return Summary{}, ErrNotYetSubmitted
	}

	var line *Line
	for i := range summary.Lines {
		if summary.Lines[i].AnswerID == answerID {
			line = &summary.Lines[i]
			break
		}
	}
	if line == nil {
		return Summary{}, fmt.Errorf("%w: %s", ErrUnknownAnswer, answerID)
	}
	if line.Question.Type != api.QuestionAnswer {
		return Summary{}, ErrNotReviewable
	}

	awarded := 0.0
	if correct {
		awarded = line.Question.Points
	}
	if points != nil {
		awarded = *points
	}

	review := api.ReviewRequest{Points: awarded, IsCorrect: correct}
	if err := s.api.ReviewAnswer(ctx, quizID, participantID, answerID, review); err != nil {
		return Summary{}, fmt.Errorf("review answer %s: %w", answerID, err)
	}
	s.logger.Info().
		Str("participant_id", participantID).
		Str("answer_id", answerID).
		Bool("correct", correct).
		Float64("points", awarded).
		Msg("answer reviewed")

	return s.Results(ctx, quizID, participantID)
}
