package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/gokatarajesh/quiz-session/internal/api"
	"github.com/gokatarajesh/quiz-session/internal/auth/jwt"
	"github.com/gokatarajesh/quiz-session/internal/metrics"
	"github.com/gokatarajesh/quiz-session/internal/storage"
)

const DefaultRefreshThreshold = 48 * time.Hour

var (
	// ErrNoToken means nobody is signed in on this profile.
	ErrNoToken = errors.New("no access token stored")
	// ErrTokenExpired means the stored token was expired and has been dropped.
	ErrTokenExpired = fmt.Errorf("%w: stored token expired", ErrNoToken)
)

// Refresher exchanges a still-valid token for a fresh one.
type Refresher interface {
	RefreshToken(ctx context.Context, current string) (string, error)
}

// TokenSource reads the bearer token from local storage on every call and
// refreshes it when it is about to expire.
type TokenSource struct {
	store     storage.Store
	refresher Refresher
	threshold time.Duration
	now       func() time.Time
	logger    zerolog.Logger
	metrics   *metrics.Collectors

	mu sync.Mutex
}

var _ oauth2.TokenSource = (*TokenSource)(nil)

type TokenSourceOptions struct {
	Threshold time.Duration
	Now       func() time.Time
	Metrics   *metrics.Collectors
}

func NewTokenSource(store storage.Store, refresher Refresher, opts TokenSourceOptions, logger zerolog.Logger) *TokenSource {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultRefreshThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TokenSource{
		store:     store,
		refresher: refresher,
		threshold: opts.Threshold,
		now:       opts.Now,
		logger:    logger.With().Str("component", "token_source").Logger(),
		metrics:   opts.Metrics,
	}
}

// Token implements oauth2.TokenSource.
func (s *TokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.TokenContext(ctx)
}

// TokenContext returns the current token, refreshing it first when it
// expires within the threshold. Expired or unrefreshable tokens clear storage.
func (s *TokenSource) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok, err := storage.GetString(ctx, s.store, storage.KeyToken)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	if !ok {
		return nil, ErrNoToken
	}

	now := s.now()
	if jwt.IsExpired(token, now) {
		s.logger.Info().Msg("stored token expired, clearing storage")
		if err := s.store.Clear(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("clear storage failed")
		}
		return nil, ErrTokenExpired
	}

	if jwt.IsExpiringSoon(token, now, s.threshold) && s.refresher != nil {
		fresh, err := s.refresher.RefreshToken(ctx, token)
		if err != nil {
			s.metrics.TokenRefreshed("error")
			s.logger.Warn().Err(err).Msg("token refresh failed, clearing storage")
			if clearErr := s.store.Clear(ctx); clearErr != nil {
				s.logger.Warn().Err(clearErr).Msg("clear storage failed")
			}
			return nil, fmt.Errorf("refresh token: %w", err)
		}
		if err := s.store.Set(ctx, storage.KeyToken, fresh); err != nil {
			return nil, fmt.Errorf("store refreshed token: %w", err)
		}
		s.metrics.TokenRefreshed("ok")
		s.logger.Debug().Msg("access token refreshed")
		token = fresh
	}

	out := &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
	if exp, err := jwt.Expiry(token); err == nil {
		out.Expiry = exp
	}
	return out, nil
}

// APIRefresher calls POST /user/refresh with the current token attached.
type APIRefresher struct {
	baseURL string
	base    http.RoundTripper
	timeout time.Duration
}

func NewAPIRefresher(baseURL string, base http.RoundTripper, timeout time.Duration) *APIRefresher {
	if base == nil {
		base = http.DefaultTransport
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIRefresher{baseURL: baseURL, base: base, timeout: timeout}
}

func (r *APIRefresher) RefreshToken(ctx context.Context, current string) (string, error) {
	httpClient := &http.Client{
		Timeout: r.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: current, TokenType: "Bearer"}),
			Base:   r.base,
		},
	}
	return api.NewClient(r.baseURL, httpClient).RefreshToken(ctx)
}
