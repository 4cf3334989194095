// Package auth handles user registration, login and the opaque session tokens
// that websocket commands and API calls carry.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/Cheese-chess-server/internal/obslog"
	"github.com/park285/Cheese-chess-server/pkg/chessdto"
)

var (
	ErrUsernameTaken  = errf("username already taken")
	ErrBadCredentials = errf("wrong username or password")
	ErrInvalidToken   = errf("invalid authentication token")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// Session is an issued login.
type Session struct {
	Username string
	Token    string
}

// backend is the storage the service runs on.
type backend interface {
	createUser(ctx context.Context, username, hash, email string) (bool, error)
	passwordHash(ctx context.Context, username string) (string, bool, error)
	putToken(ctx context.Context, token, username string, ttl time.Duration) error
	tokenUser(ctx context.Context, token string) (string, bool, error)
	deleteToken(ctx context.Context, token string) (bool, error)
}

// Service implements registration, login, logout and token resolution.
type Service struct {
	store    backend
	ttl      time.Duration
	params   HashParams
	validate *validator.Validate
	logger   *zap.Logger
}

type Option func(*Service)

// WithHashParams overrides the argon2 cost (tests use a cheap setting).
func WithHashParams(p HashParams) Option { return func(s *Service) { s.params = p } }

// WithLogger sets the logger; the default is the global one.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func newService(b backend, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		store:    b,
		ttl:      ttl,
		params:   DefaultHashParams,
		validate: validator.New(),
		logger:   obslog.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register creates the user and logs them in.
func (s *Service) Register(ctx context.Context, req chessdto.RegisterRequest) (*Session, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	hash, err := HashPassword(req.Password, s.params)
	if err != nil {
		return nil, err
	}
	created, err := s.store.createUser(ctx, req.Username, hash, strings.TrimSpace(req.Email))
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrUsernameTaken
	}
	s.logger.Info("auth_register", zap.String("username", req.Username))
	return s.issue(ctx, req.Username)
}

// Login verifies the password and issues a fresh token.
func (s *Service) Login(ctx context.Context, req chessdto.LoginRequest) (*Session, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	hash, ok, err := s.store.passwordHash(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBadCredentials
	}
	match, err := ComparePassword(req.Password, hash)
	if err != nil {
		return nil, err
	}
	if !match {
		s.logger.Info("auth_login_rejected", zap.String("username", req.Username))
		return nil, ErrBadCredentials
	}
	return s.issue(ctx, req.Username)
}

// Logout revokes token.
func (s *Service) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	deleted, err := s.store.deleteToken(ctx, token)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrInvalidToken
	}
	return nil
}

// Resolve maps a token to its username. Unknown or expired tokens yield
// ("", false, nil).
func (s *Service) Resolve(ctx context.Context, token string) (string, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false, nil
	}
	return s.store.tokenUser(ctx, token)
}

func (s *Service) issue(ctx context.Context, username string) (*Session, error) {
	token := uuid.NewString()
	if err := s.store.putToken(ctx, token, username, s.ttl); err != nil {
		return nil, err
	}
	return &Session{Username: username, Token: token}, nil
}
