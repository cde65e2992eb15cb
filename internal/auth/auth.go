// Package auth signs users in with username and password and keeps their
// sessions in the kv store under "auth_token_<token>".
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/TemirB/freight-portal/internal/config"
	"github.com/TemirB/freight-portal/internal/domain"
	"github.com/TemirB/freight-portal/internal/events"
	"github.com/TemirB/freight-portal/internal/kv"
)

const (
	tokenPrefix = "auth_token_"
	tokenBytes  = 32
)

//go:generate mockgen -source=../domain/repo.go -destination=repo_mock_test.go -package=auth

var ErrInvalidCredentials = errors.New("invalid username or password")

// dummyHash is compared against when the user does not exist, so that unknown
// usernames take as long as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("freight-portal"), bcrypt.MinCost)

type Service struct {
	users  domain.UserRepository
	store  kv.Store
	events events.Publisher
	cfg    config.Auth
	now    func() time.Time
	logger *zap.Logger
}

func NewService(users domain.UserRepository, store kv.Store, pub events.Publisher, cfg config.Auth, logger *zap.Logger) *Service {
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:  users,
		store:  store,
		events: pub,
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
}

func (s *Service) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalid)
	}

	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		s.logger.Info("login rejected", zap.String("username", username), zap.String("reason", "unknown user"))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		s.logger.Info("login rejected", zap.String("username", username), zap.String("reason", "wrong password"))
		return nil, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}
	sess := &domain.Session{Token: token, User: *u, IssuedAt: s.now().UTC()}
	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := s.store.Set(ctx, tokenPrefix+token, string(raw)); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	s.logger.Info("user signed in", zap.String("username", u.Username), zap.String("role", string(u.Role)))
	return sess, nil
}

// Me resolves a token to its user. Unknown, expired or orphaned sessions are
// removed and reported as domain.ErrUnauthorized.
func (s *Service) Me(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	raw, err := s.store.Get(ctx, tokenPrefix+token)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.logger.Warn("dropping unreadable session", zap.Error(err))
		return nil, s.reject(ctx, token)
	}
	if s.cfg.SessionTTL > 0 && s.now().Sub(sess.IssuedAt) >= s.cfg.SessionTTL {
		return nil, s.reject(ctx, token)
	}

	// Role changes and deletions take effect on the next request.
	u, err := s.users.GetByUsername(ctx, sess.User.Username)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, s.reject(ctx, token)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.Remove(ctx, tokenPrefix+token)
}

// Invalidate drops a session after an upstream reported the user's access as
// expired.
func (s *Service) Invalidate(ctx context.Context, token string) {
	if err := s.Logout(ctx, token); err != nil {
		s.logger.Warn("session not removed", zap.Error(err))
	}
}

func (s *Service) reject(ctx context.Context, token string) error {
	s.Invalidate(ctx, token)
	return domain.ErrUnauthorized
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
