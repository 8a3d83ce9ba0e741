package storage

import (
	"context"
)

// Well-known keys of the local slot.
const (
	KeyToken         = "token"
	KeyParticipantID = "participantId"
)

// Store is the client's local persistent storage. Values are JSON encoded.
type Store interface {
	// Get decodes the value under key into dst. It reports false when the
	// key is absent or holds JSON null.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, key string) error
	// Clear drops every key of this profile.
	Clear(ctx context.Context) error
}

// GetString is Get for string values; decoding failures count as absent.
func GetString(ctx context.Context, s Store, key string) (string, bool, error) {
	var value string
	ok, err := s.Get(ctx, key, &value)
	if err != nil {
		return "", false, err
	}
	if !ok || value == "" {
		return "", false, nil
	}
	return value, true, nil
}
