package api

import (
	"context"
	"net/http"

	httperrors "github.com/gokatarajesh/quiz-session/pkg/http/errors"
)

// ListQuizzes returns the signed-in instructor's quizzes.
func (c *Client) ListQuizzes(ctx context.Context) ([]Quiz, error) {
	var out struct {
		Quizzes []Quiz `json:"quizzes"`
	}
	if err := c.do(ctx, http.MethodGet, "GET /quiz", "/quiz", nil, &out); err != nil {
		return nil, err
	}
	return out.Quizzes, nil
}

// GetQuiz fetches a quiz with its questions.
func (c *Client) GetQuiz(ctx context.Context, quizID string) (Quiz, error) {
	var out struct {
		Quiz Quiz `json:"quiz"`
	}
	path := "/quiz/" + escape(quizID)
	if err := c.do(ctx, http.MethodGet, "GET /quiz/{id}", path, nil, &out); err != nil {
		return Quiz{}, err
	}
	if out.Quiz.ID == "" {
		return Quiz{}, &APIError{StatusError: notFound("quiz not found"), Method: http.MethodGet, Path: path}
	}
	return out.Quiz, nil
}

// CreateQuiz stores a new quiz. The API does not echo it back.
func (c *Client) CreateQuiz(ctx context.Context, quiz Quiz) error {
	return c.do(ctx, http.MethodPost, "POST /quiz", "/quiz", quizBody(quiz), nil)
}

// UpdateQuiz replaces an existing quiz.
func (c *Client) UpdateQuiz(ctx context.Context, quizID string, quiz Quiz) error {
	return c.do(ctx, http.MethodPut, "PUT /quiz/{id}", "/quiz/"+escape(quizID), quizBody(quiz), nil)
}

// DeleteQuiz removes a quiz.
func (c *Client) DeleteQuiz(ctx context.Context, quizID string) error {
	return c.do(ctx, http.MethodDelete, "DELETE /quiz/{id}", "/quiz/"+escape(quizID), nil, nil)
}

// GetQuizParticipants lists everyone who attempted a quiz.
func (c *Client) GetQuizParticipants(ctx context.Context, quizID string) (QuizParticipants, error) {
	var out QuizParticipants
	path := "/quiz/" + escape(quizID) + "/participant"
	if err := c.do(ctx, http.MethodGet, "GET /quiz/{id}/participant", path, nil, &out); err != nil {
		return QuizParticipants{}, err
	}
	return out, nil
}

// GetParticipantResults returns the per-question results used for grading.
func (c *Client) GetParticipantResults(ctx context.Context, quizID, participantID string) (ParticipantResults, error) {
	var out ParticipantResults
	path := "/quiz/" + escape(quizID) + "/participant/" + escape(participantID)
	if err := c.do(ctx, http.MethodGet, "GET /quiz/{id}/participant/{participantId}", path, nil, &out); err != nil {
		return ParticipantResults{}, err
	}
	return out, nil
}

// ReviewAnswer grades one participant answer.
func (c *Client) ReviewAnswer(ctx context.Context, quizID, participantID, answerID string, review ReviewRequest) error {
	path := "/quiz/" + escape(quizID) + "/participant/" + escape(participantID) + "/answer/" + escape(answerID)
	return c.do(ctx, http.MethodPut, "PUT /quiz/{id}/participant/{participantId}/answer/{answerId}", path, review, nil)
}

type questionBody struct {
	ID             string       `json:"_id,omitempty"`
	Type           QuestionType `json:"type"`
	Prompt         string       `json:"question"`
	Choices        []string     `json:"answers"`
	CorrectChoices []string     `json:"correctAnswers"`
	Points         float64      `json:"points"`
}

type quizRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Duration    int            `json:"duration"`
	IsActive    bool           `json:"isActive"`
	Questions   []questionBody `json:"questions"`
}

// quizBody strips server-owned fields before sending a quiz.
func quizBody(q Quiz) quizRequest {
	body := quizRequest{
		Title:       q.Title,
		Description: q.Description,
		Duration:    q.Duration,
		IsActive:    q.IsActive,
		Questions:   make([]questionBody, 0, len(q.Questions)),
	}
	for _, question := range q.Questions {
		choices := question.Choices
		if choices == nil {
			choices = []string{}
		}
		correct := question.CorrectChoices
		if correct == nil {
			correct = []string{}
		}
		body.Questions = append(body.Questions, questionBody{
			ID:             question.ID,
			Type:           question.Type,
			Prompt:         question.Prompt,
			Choices:        choices,
			CorrectChoices: correct,
			Points:         question.Points,
		})
	}
	return body
}

func notFound(message string) *httperrors.StatusError {
	return &httperrors.StatusError{
		Status:  http.StatusNotFound,
		Code:    httperrors.ErrCodeNotFound,
		Message: message,
	}
}
