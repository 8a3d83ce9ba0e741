package api

import (
	"time"
)

// QuestionType distinguishes multiple-choice from free-text questions.
type QuestionType string

const (
	QuestionChoice QuestionType = "choice"
	QuestionAnswer QuestionType = "answer"
)

// Quiz as served by GET /quiz/{id}.
type Quiz struct {
	ID          string     `json:"_id" yaml:"id,omitempty"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Duration    int        `json:"duration" yaml:"duration"` // minutes
	IsActive    bool       `json:"isActive" yaml:"active"`
	Questions   []Question `json:"questions" yaml:"questions"`
}

// Question finds a question by id.
func (q Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// TotalPoints sums the point values of all questions.
func (q Quiz) TotalPoints() float64 {
	var total float64
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// Question belongs to exactly one quiz.
type Question struct {
	ID             string       `json:"_id,omitempty" yaml:"id,omitempty"`
	Type           QuestionType `json:"type" yaml:"type"`
	Prompt         string       `json:"question" yaml:"question"`
	Choices        []string     `json:"answers,omitempty" yaml:"answers,omitempty"`
	CorrectChoices []string     `json:"correctAnswers,omitempty" yaml:"correctAnswers,omitempty"`
	Points         float64      `json:"points" yaml:"points"`
	QuizID         string       `json:"quiz,omitempty" yaml:"-"`
}

// HasChoice reports whether value is one of the question's choices.
func (q Question) HasChoice(value string) bool {
	for _, c := range q.Choices {
		if c == value {
			return true
		}
	}
	return false
}

// Participant is one person's attempt at one quiz.
type Participant struct {
	ID          string    `json:"_id"`
	QuizID      string    `json:"quiz"`
	Name        string    `json:"name"`
	StudentID   string    `json:"studentId"`
	CreatedAt   time.Time `json:"createdAt"`
	IsCompleted bool      `json:"isCompleted"`
	Points      float64   `json:"points"`
	IsGraded    bool      `json:"isGraded"`
}

// ParticipantAnswer is upserted per (participant, question).
type ParticipantAnswer struct {
	ID            string   `json:"_id"`
	ParticipantID string   `json:"participant"`
	QuizID        string   `json:"quiz"`
	QuestionID    string   `json:"question"`
	Answer        string   `json:"answer"`
	IsCorrect     *bool    `json:"isCorrect,omitempty"`
	Points        *float64 `json:"points,omitempty"`
}

// CreateParticipantRequest is the body of POST /participant.
type CreateParticipantRequest struct {
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
	QuizID    string `json:"quizId"`
}

// QuizParticipants is the body of GET /quiz/{id}/participant.
type QuizParticipants struct {
	Quiz         Quiz          `json:"quiz"`
	Participants []Participant `json:"participants"`
}

// QuestionResult pairs a question with the participant's answer, if any.
type QuestionResult struct {
	Question Question           `json:"question"`
	Answer   *ParticipantAnswer `json:"answer"`
}

// ParticipantResults is the body of GET /quiz/{id}/participant/{participantId}.
type ParticipantResults struct {
	Participant Participant      `json:"participant"`
	Quiz        Quiz             `json:"quiz"`
	Results     []QuestionResult `json:"results"`
}

// ReviewRequest grades one answer.
type ReviewRequest struct {
	Points    float64 `json:"points"`
	IsCorrect bool    `json:"isCorrect"`
}

// User is the signed-in instructor.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LoginRequest is the body of POST /user/auth.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /user.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
