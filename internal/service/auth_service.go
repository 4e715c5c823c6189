package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AuthService coordinates agent registration and login flows.
type AuthService struct {
	agents              repository.AgentRepository
	tokenMgr            *auth.TokenManager
	passwords           *auth.Passwords
	registrationEnabled bool
	retry               RetryPolicy
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	AgentRepo repository.AgentRepository
	Retry     RetryPolicy
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		agents:              deps.AgentRepo,
		tokenMgr:            auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		passwords:           auth.NewPasswords(cfg.BcryptCost),
		registrationEnabled: cfg.RegistrationEnabled,
		retry:               deps.Retry,
	}
}

// CreateAgent provisions an agent account. It is the path used by agentctl and
// does not consult the registration switch.
func (s *AuthService) CreateAgent(ctx context.Context, name, email, password string) (*domain.Agent, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	fields := map[string]string{}
	if name == "" {
		fields["name"] = "required"
	}
	if email == "" {
		fields["email"] = "required"
	} else if !validEmail(email) {
		fields["email"] = "invalid email address"
	}
	if err := auth.CheckPolicy(password); err != nil {
		fields["password"] = err.Error()
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid agent", map[string]any{"fields": fields})
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	agent := &domain.Agent{Name: name, Email: email, PasswordHash: hash}
	err = s.retry.do(ctx, func(ctx context.Context) error {
		return s.agents.Create(ctx, agent)
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("email already registered", nil)
		}
		return nil, storeError(err, "agent")
	}
	return agent, nil
}

// Register creates an agent through the public API when self registration is enabled.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.Agent, string, time.Time, error) {
	if !s.registrationEnabled {
		return nil, "", time.Time{}, apperrors.NewForbidden("agent registration is disabled")
	}
	agent, err := s.CreateAgent(ctx, name, email, password)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	token, exp, err := s.tokenMgr.GenerateToken(agent.ID, domain.SubjectTypeAgent)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return agent, token, exp, nil
}

// Login authenticates an agent. Unknown email and wrong password fail alike.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Agent, string, time.Time, error) {
	var agent *domain.Agent
	err := s.retry.do(ctx, func(ctx context.Context) error {
		a, err := s.agents.GetByEmail(ctx, normalizeEmail(email))
		agent = a
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.passwords.CompareDecoy(password)
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, storeError(err, "agent")
	}
	if err := s.passwords.Compare(agent.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(agent.ID, domain.SubjectTypeAgent)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return agent, token, exp, nil
}

// ChangePassword verifies current password before updating to new hash.
func (s *AuthService) ChangePassword(ctx context.Context, agentID, currentPassword, newPassword string) error {
	if err := auth.CheckPolicy(newPassword); err != nil {
		return apperrors.NewValidationError("invalid password", map[string]any{
			"fields": map[string]string{"new_password": err.Error()},
		})
	}

	var agent *domain.Agent
	err := s.retry.do(ctx, func(ctx context.Context) error {
		a, err := s.agents.GetByID(ctx, agentID)
		agent = a
		return err
	})
	if err != nil {
		return storeError(err, "agent")
	}
	if err := s.passwords.Compare(agent.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	agent.PasswordHash = hash
	err = s.retry.do(ctx, func(ctx context.Context) error {
		return s.agents.Update(ctx, agent)
	})
	return storeError(err, "agent")
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
