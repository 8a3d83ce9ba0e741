package api

import (
	"context"
	"fmt"
	"net/http"
)

// CreateParticipant starts a new attempt.
func (c *Client) CreateParticipant(ctx context.Context, req CreateParticipantRequest) (Participant, error) {
	var out struct {
		Participant Participant `json:"participant"`
	}
	if err := c.do(ctx, http.MethodPost, "POST /participant", "/participant", req, &out); err != nil {
		return Participant{}, err
	}
	if out.Participant.ID == "" {
		return Participant{}, fmt.Errorf("create participant: empty participant in response")
	}
	return out.Participant, nil
}

// GetParticipant fetches one participant.
func (c *Client) GetParticipant(ctx context.Context, participantID string) (Participant, error) {
	var out struct {
		Participant Participant `json:"participant"`
	}
	path := "/participant/" + escape(participantID)
	if err := c.do(ctx, http.MethodGet, "GET /participant/{id}", path, nil, &out); err != nil {
		return Participant{}, err
	}
	if out.Participant.ID == "" {
		return Participant{}, &APIError{StatusError: notFound("participant not found"), Method: http.MethodGet, Path: path}
	}
	return out.Participant, nil
}

// MarkFinished flips the participant's completion flag.
func (c *Client) MarkFinished(ctx context.Context, participantID string) error {
	path := "/participant/" + escape(participantID) + "/finish"
	return c.do(ctx, http.MethodPut, "PUT /participant/{id}/finish", path, struct{}{}, nil)
}

// SaveAnswer upserts the answer for (participant, question).
func (c *Client) SaveAnswer(ctx context.Context, participantID, questionID, answer string) error {
	body := struct {
		Answer string `json:"answer"`
	}{Answer: answer}
	path := "/participant/" + escape(participantID) + "/question/" + escape(questionID)
	return c.do(ctx, http.MethodPost, "POST /participant/{id}/question/{questionId}", path, body, nil)
}

// GetParticipantAnswers lists everything the participant has saved so far.
func (c *Client) GetParticipantAnswers(ctx context.Context, participantID string) ([]ParticipantAnswer, error) {
	var out struct {
		Answers []ParticipantAnswer `json:"answers"`
	}
	path := "/participant/" + escape(participantID) + "/answers"
	if err := c.do(ctx, http.MethodGet, "GET /participant/{id}/answers", path, nil, &out); err != nil {
		return nil, err
	}
	return out.Answers, nil
}
