package auth

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/gokatarajesh/quiz-session/internal/storage"
)

// Transport attaches the stored bearer token when there is one and clears
// local storage when the API answers 401.
type Transport struct {
	Source *TokenSource
	Store  storage.Store
	Base   http.RoundTripper
	// OnUnauthorized runs after storage was cleared because of a 401.
	OnUnauthorized func()
	Logger         zerolog.Logger
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt := t.base()

	if t.Source != nil {
		token, err := t.Source.TokenContext(req.Context())
		switch {
		case errors.Is(err, ErrNoToken):
			// anonymous request, e.g. a participant taking a quiz
		case err != nil:
			return nil, err
		default:
			rt = &oauth2.Transport{Source: oauth2.StaticTokenSource(token), Base: rt}
		}
	}

	resp, err := rt.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.Logger.Warn().Str("path", req.URL.Path).Msg("api returned 401, clearing local storage")
		if t.Store != nil {
			if clearErr := t.Store.Clear(req.Context()); clearErr != nil {
				t.Logger.Error().Err(clearErr).Msg("clear storage after 401 failed")
			}
		}
		if t.OnUnauthorized != nil {
			t.OnUnauthorized()
		}
	}
	return resp, nil
}

// NewTransport wires a Transport with a no-op logger by default.
func NewTransport(source *TokenSource, store storage.Store, base http.RoundTripper, logger zerolog.Logger) *Transport {
	return &Transport{
		Source: source,
		Store:  store,
		Base:   base,
		Logger: logger.With().Str("component", "auth_transport").Logger(),
	}
}
