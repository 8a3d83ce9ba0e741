package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-session/internal/api"
	"github.com/gokatarajesh/quiz-session/internal/storage"
)

// ErrSignInRequired is returned when an instructor-only action has no valid token.
var ErrSignInRequired = errors.New("sign in required")

// Session is the signed-in state handed to whoever needs it. Only Service
// mutates it.
type Session struct {
	mu            sync.RWMutex
	authenticated bool
	user          api.User
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// User returns the current user, if any.
func (s *Session) User() (api.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.authenticated
}

func (s *Session) set(user api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.authenticated = true
}

func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = api.User{}
	s.authenticated = false
}

// UserAPI is the part of the API client the auth service needs.
type UserAPI interface {
	Login(ctx context.Context, req api.LoginRequest) (string, error)
	Register(ctx context.Context, req api.RegisterRequest) (string, error)
	Me(ctx context.Context) (api.User, error)
}

// Service owns sign-in state: it is the only writer of Session and of the
// stored token.
type Service struct {
	api     UserAPI
	store   storage.Store
	session *Session
	logger  zerolog.Logger
}

func NewService(userAPI UserAPI, store storage.Store, session *Session, logger zerolog.Logger) *Service {
	return &Service{
		api:     userAPI,
		store:   store,
		session: session,
		logger:  logger.With().Str("component", "auth_service").Logger(),
	}
}

// Session returns the injected session.
func (s *Service) Session() *Session {
	return s.session
}

// Login stores the token and loads the user.
func (s *Service) Login(ctx context.Context, email, password string) (api.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return api.User{}, fmt.Errorf("email and password are required")
	}
	token, err := s.api.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return api.User{}, fmt.Errorf("login: %w", err)
	}
	return s.adopt(ctx, token)
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, name, email, password string) (api.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return api.User{}, fmt.Errorf("name, email and password are required")
	}
	token, err := s.api.Register(ctx, api.RegisterRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return api.User{}, fmt.Errorf("register: %w", err)
	}
	return s.adopt(ctx, token)
}

func (s *Service) adopt(ctx context.Context, token string) (api.User, error) {
	if err := s.store.Set(ctx, storage.KeyToken, token); err != nil {
		return api.User{}, fmt.Errorf("store token: %w", err)
	}
	return s.LoadMe(ctx)
}

// LoadMe resolves the current user from the stored token.
func (s *Service) LoadMe(ctx context.Context) (api.User, error) {
	user, err := s.api.Me(ctx)
	if err != nil {
		s.session.reset()
		if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, ErrNoToken) {
			return api.User{}, ErrSignInRequired
		}
		return api.User{}, fmt.Errorf("load user: %w", err)
	}
	s.session.set(user)
	s.logger.Debug().Str("user_id", user.ID).Msg("user loaded")
	return user, nil
}

// Logout forgets everything stored locally.
func (s *Service) Logout(ctx context.Context) error {
	s.session.reset()
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear storage: %w", err)
	}
	return nil
}

// HandleUnauthorized is the Transport's OnUnauthorized hook.
func (s *Service) HandleUnauthorized() {
	s.session.reset()
}
