package auth

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/TemirB/freight-portal/internal/domain"
	"github.com/TemirB/freight-portal/internal/events"
)

const minPasswordLen = 8

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 ._@&-]{1,63}$`)

type NewUser struct {
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	DisplayName string      `json:"displayName"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
}

func (n *NewUser) validate() error {
	n.Username = strings.TrimSpace(n.Username)
	n.Email = strings.TrimSpace(n.Email)
	n.DisplayName = strings.TrimSpace(n.DisplayName)
	if n.Role == "" {
		n.Role = domain.RoleCustomer
	}

	switch {
	case !usernamePattern.MatchString(n.Username):
		return fmt.Errorf("%w: username must be 2-64 letters, digits, spaces or . _ @ & -", domain.ErrInvalid)
	case len(n.Password) < minPasswordLen:
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalid, minPasswordLen)
	case !n.Role.Valid():
		return fmt.Errorf("%w: unknown role %q", domain.ErrInvalid, n.Role)
	}
	if n.Email != "" {
		if _, err := mail.ParseAddress(n.Email); err != nil {
			return fmt.Errorf("%w: invalid email", domain.ErrInvalid)
		}
	}
	return nil
}

func (s *Service) CreateUser(ctx context.Context, n NewUser) (*domain.User, error) {
	if err := n.validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(n.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{
		Username:     n.Username,
		DisplayName:  n.DisplayName,
		Email:        n.Email,
		Role:         n.Role,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("username", u.Username), zap.String("role", string(u.Role)))
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	if role != "" && !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalid, role)
	}
	return s.users.List(ctx, role)
}

func (s *Service) Executives(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx, domain.RoleExecutive)
}

// DeleteUser removes the account and drops every cached list of that user.
// Open sessions are rejected on their next request.
func (s *Service) DeleteUser(ctx context.Context, actor, username string) error {
	if strings.EqualFold(actor, username) {
		return fmt.Errorf("%w: you cannot delete your own account", domain.ErrInvalid)
	}
	if err := s.users.Delete(ctx, username); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("username", username), zap.String("by", actor))
	if err := s.events.Publish(ctx, events.NewInvalidation(username, "")); err != nil {
		s.logger.Warn("caches of deleted user not invalidated", zap.String("username", username), zap.Error(err))
	}
	return nil
}
