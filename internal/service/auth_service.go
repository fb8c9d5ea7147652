package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"
	"go-inventory-ledger/pkg/jwt"
	"go-inventory-ledger/pkg/validator"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrSessionReplaced    = errors.New("session expired (logged in on another device)")
)

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	FullName string `json:"full_name" validate:"required,max=255"`
}

type LoginResponse struct {
	Token string             `json:"token"`
	User  model.UserResponse `json:"user"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	Authenticate(ctx context.Context, token string) (*model.User, error)
	Heartbeat(ctx context.Context, userID uuid.UUID) error
	Profile(ctx context.Context, userID uuid.UUID) (*model.User, error)
}

type authService struct {
	users  repository.UserRepository
	tokens *jwt.Manager
	now    func() time.Time
}

func NewAuthService(users repository.UserRepository, tokens *jwt.Manager) AuthService {
	return &authService{
		users:  users,
		tokens: tokens,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if errs := validator.ValidateStruct(&in); len(errs) > 0 {
		return nil, &ValidationError{Field: errs[0].Field, Message: "failed on '" + errs[0].Tag + "'"}
	}

	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, &ValidationError{Field: "email", Message: "email already registered"}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, classify("register user", err)
	}

	user := &model.User{Email: in.Email, FullName: in.FullName, IsActive: true}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, classify("hash password", err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, classify("register user", err)
	}
	return user, nil
}

// Login rotates the user's token version, which invalidates any token
// issued to an earlier session.
func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, classify("login", err)
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	version := uuid.NewString()
	now := s.now()
	if err := s.users.UpdateSession(ctx, user.ID, version, now); err != nil {
		return nil, classify("update session", err)
	}
	user.TokenVersion, user.LastSeenAt = version, &now

	token, err := s.tokens.GenerateToken(user.ID, user.Email, user.FullName, version)
	if err != nil {
		return nil, classify("generate token", err)
	}

	return &LoginResponse{Token: token, User: user.ToResponse()}, nil
}

// Authenticate resolves a bearer token to its still-current user.
func (s *authService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, jwt.ErrInvalidToken
	}
	if err != nil {
		return nil, classify("authenticate", err)
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, ErrSessionReplaced
	}
	return user, nil
}

func (s *authService) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.TouchLastSeen(ctx, userID, s.now()); err != nil {
		return classify("heartbeat", notFoundAs(err, "user", userID))
	}
	return nil
}

func (s *authService) Profile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, classify("profile", notFoundAs(err, "user", userID))
	}
	return user, nil
}
