package authoring

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/gokatarajesh/quiz-session/internal/api"
)

// QuizAPI is the part of the REST client used to manage quizzes.
type QuizAPI interface {
	ListQuizzes(ctx context.Context) ([]api.Quiz, error)
	GetQuiz(ctx context.Context, quizID string) (api.Quiz, error)
	CreateQuiz(ctx context.Context, quiz api.Quiz) error
	UpdateQuiz(ctx context.Context, quizID string, quiz api.Quiz) error
	DeleteQuiz(ctx context.Context, quizID string) error
}

// ValidationError lists every problem found in a quiz definition, keyed by
// a path such as "questions[2].answers".
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
	return "invalid quiz: " + strings.Join(parts, "; ")
}

// DefaultDuration applies when a definition omits the duration.
const DefaultDuration = 45

// quizFile mirrors api.Quiz so that "active" can default to true.
type quizFile struct {
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Duration    *int           `yaml:"duration"`
	Active      *bool          `yaml:"active"`
	Questions   []api.Question `yaml:"questions"`
}

// Parse decodes a YAML quiz definition. Unknown keys are rejected.
func Parse(r io.Reader) (api.Quiz, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f quizFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return api.Quiz{}, errors.New("quiz definition is empty")
		}
		return api.Quiz{}, fmt.Errorf("decode quiz: %w", err)
	}

	quiz := api.Quiz{
		Title:       strings.TrimSpace(f.Title),
		Description: f.Description,
		Duration:    DefaultDuration,
		IsActive:    true,
		Questions:   f.Questions,
	}
	if f.Duration != nil {
		quiz.Duration = *f.Duration
	}
	if f.Active != nil {
		quiz.IsActive = *f.Active
	}
	for i := range quiz.Questions {
		quiz.Questions[i].Prompt = strings.TrimSpace(quiz.Questions[i].Prompt)
		if quiz.Questions[i].Type == "" {
			quiz.Questions[i].Type = api.QuestionAnswer
		}
	}
	return quiz, nil
}

// LoadFile reads and validates a quiz definition from disk.
func LoadFile(path string) (api.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.Quiz{}, err
	}
	quiz, err := Parse(bytes.NewReader(data))
	if err != nil {
		return api.Quiz{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := Validate(quiz); err != nil {
		return api.Quiz{}, fmt.Errorf("%s: %w", path, err)
	}
	return quiz, nil
}

// Validate checks a quiz before it is sent to the API.
func Validate(q api.Quiz) error {
	fields := map[string]string{}
	if strings.TrimSpace(q.Title) == "" {
		fields["title"] = "Title is required"
	}
	if q.Duration < 1 {
		fields["duration"] = "Duration must be at least 1 minute"
	}
	if len(q.Questions) == 0 {
		fields["questions"] = "At least one question is required"
	}
	for i, question := range q.Questions {
		prefix := fmt.Sprintf("questions[%d]", i)
		if strings.TrimSpace(question.Prompt) == "" {
			fields[prefix+".question"] = "Question is required"
		}
		if question.Points < 0 {
			fields[prefix+".points"] = "Points cannot be negative"
		}
		switch question.Type {
		case api.QuestionAnswer:
			if len(question.Choices) > 0 || len(question.CorrectChoices) > 0 {
				fields[prefix+".answers"] = "Free-text questions take no choices"
			}
		case api.QuestionChoice:
			validateChoices(prefix, question, fields)
		default:
			fields[prefix+".type"] = fmt.Sprintf("Unknown question type %q", question.Type)
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validateChoices(prefix string, q api.Question, fields map[string]string) {
	if len(q.Choices) < 2 {
		fields[prefix+".answers"] = "At least two choices are required"
	}
	seen := make(map[string]struct{}, len(q.Choices))
	for j, choice := range q.Choices {
		if strings.TrimSpace(choice) == "" {
			fields[fmt.Sprintf("%s.answers[%d]", prefix, j)] = "Choice text is required"
			continue
		}
		if _, dup := seen[choice]; dup {
			fields[fmt.Sprintf("%s.answers[%d]", prefix, j)] = "Duplicate choice"
		}
		seen[choice] = struct{}{}
	}
	if len(q.CorrectChoices) == 0 {
		fields[prefix+".correctAnswers"] = "Select the correct choice"
		return
	}
	for _, correct := range q.CorrectChoices {
		if !q.HasChoice(correct) {
			fields[prefix+".correctAnswers"] = fmt.Sprintf("%q is not one of the choices", correct)
			return
		}
	}
}

// Service manages an instructor's quizzes.
type Service struct {
	api    QuizAPI
	logger zerolog.Logger
}

func NewService(client QuizAPI, logger zerolog.Logger) *Service {
	return &Service{
		api:    client,
		logger: logger.With().Str("component", "authoring").Logger(),
	}
}

// List returns the instructor's quizzes.
func (s *Service) List(ctx context.Context) ([]api.Quiz, error) {
	quizzes, err := s.api.ListQuizzes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return quizzes, nil
}

// Get returns one quiz with its questions.
func (s *Service) Get(ctx context.Context, quizID string) (api.Quiz, error) {
	quiz, err := s.api.GetQuiz(ctx, quizID)
	if err != nil {
		return api.Quiz{}, fmt.Errorf("get quiz %s: %w", quizID, err)
	}
	return quiz, nil
}

// Create validates and stores a new quiz.
func (s *Service) Create(ctx context.Context, quiz api.Quiz) error {
	if err := Validate(quiz); err != nil {
		return err
	}
	if err := s.api.CreateQuiz(ctx, quiz); err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}
	s.logger.Info().Str("title", quiz.Title).Int("questions", len(quiz.Questions)).Msg("quiz created")
	return nil
}

// Update validates and replaces an existing quiz. Question ids already on the
// server are kept when the prompt matches, so existing answers stay attached.
func (s *Service) Update(ctx context.Context, quizID string, quiz api.Quiz) error {
	if err := Validate(quiz); err != nil {
		return err
	}
	current, err := s.api.GetQuiz(ctx, quizID)
	if err != nil {
		return fmt.Errorf("get quiz %s: %w", quizID, err)
	}
	quiz.Questions = keepQuestionIDs(current.Questions, quiz.Questions)

	if err := s.api.UpdateQuiz(ctx, quizID, quiz); err != nil {
		return fmt.Errorf("update quiz %s: %w", quizID, err)
	}
	s.logger.Info().Str("quiz_id", quizID).Msg("quiz updated")
	return nil
}

// SetActive opens or closes a quiz for new participants.
func (s *Service) SetActive(ctx context.Context, quizID string, active bool) error {
	quiz, err := s.api.GetQuiz(ctx, quizID)
	if err != nil {
		return fmt.Errorf("get quiz %s: %w", quizID, err)
	}
	if quiz.IsActive == active {
		return nil
	}
	quiz.IsActive = active
	if err := s.api.UpdateQuiz(ctx, quizID, quiz); err != nil {
		return fmt.Errorf("update quiz %s: %w", quizID, err)
	}
	s.logger.Info().Str("quiz_id", quizID).Bool("active", active).Msg("quiz activation changed")
	return nil
}

// Delete removes a quiz.
func (s *Service) Delete(ctx context.Context, quizID string) error {
	if err := s.api.DeleteQuiz(ctx, quizID); err != nil {
		return fmt.Errorf("delete quiz %s: %w", quizID, err)
	}
	s.logger.Info().Str("quiz_id", quizID).Msg("quiz deleted")
	return nil
}

func keepQuestionIDs(current, next []api.Question) []api.Question {
	byPrompt := make(map[string]string, len(current))
	for _, q := range current {
		byPrompt[q.Prompt] = q.ID
	}
	out := make([]api.Question, len(next))
	for i, q := range next {
		if q.ID == "" {
			q.ID = byPrompt[q.Prompt]
		}
		out[i] = q
	}
	return out
}

// Marshal renders a quiz as a YAML definition that Parse accepts.
func Marshal(q api.Quiz) ([]byte, error) {
	duration := q.Duration
	active := q.IsActive
	questions := make([]api.Question, len(q.Questions))
	for i, question := range q.Questions {
		question.ID = ""
		question.QuizID = ""
		questions[i] = question
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(quizFile{
		Title:       q.Title,
		Description: q.Description,
		Duration:    &duration,
		Active:      &active,
		Questions:   questions,
	}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
