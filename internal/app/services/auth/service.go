package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"sprinter/internal/app/outbox"
	domainuser "sprinter/internal/domain/user"
)

const MinPasswordLength = 6

var (
	ErrInvalidCredentials     = errors.New("auth: invalid credentials")
	ErrPasswordTooShort       = errors.New("auth: password must be at least 6 characters")
	ErrInvalidEmail           = errors.New("auth: invalid email address")
	ErrEmailAlreadyRegistered = errors.New("auth: email already registered")
	ErrInvalidToken           = errors.New("auth: invalid token")
	ErrUserNotFound           = errors.New("auth: user not found")
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenIssuer signs and verifies access tokens whose subject is the user email.
type TokenIssuer interface {
	Issue(subject string, now time.Time) (string, error)
	Subject(token string) (string, error)
}

type Service struct {
	Users     domainuser.Repository
	Passwords PasswordHasher
	Tokens    TokenIssuer
	Outbox    outbox.Outbox
	Encoder   outbox.EventEncoder
	Logger    *slog.Logger
	Now       func() time.Time
}

type SignupParams struct {
	Name     string
	Email    string
	Password string
}

type SigninParams struct {
	Email    string
	Password string
}

type AuthResult struct {
	User  *domainuser.User
	Token string
}

var emailCheck = validator.New()

func (s *Service) Signup(ctx context.Context, params SignupParams) (*AuthResult, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	email := domainuser.NormalizeEmail(params.Email)
	if err := emailCheck.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}
	if err := domainuser.ValidateName(strings.TrimSpace(params.Name)); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(params.Password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	if _, err := s.Users.ByEmail(ctx, email); err == nil {
		return nil, ErrEmailAlreadyRegistered
	} else if !errors.Is(err, domainuser.ErrNotFound) {
		return nil, err
	}

	hash, err := s.Passwords.Hash(params.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	user, err := domainuser.NewUser(domainuser.CreateParams{
		ID:           domainuser.ID(uuid.NewString()),
		Name:         params.Name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Users.Save(ctx, user); err != nil {
		if errors.Is(err, domainuser.ErrEmailAlreadyUsed) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, err
	}
	s.recordRegistration(ctx, user)

	token, err := s.Tokens.Issue(user.Email, now)
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("user registered", "user_id", user.ID, "email", user.Email)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *Service) Signin(ctx context.Context, params SigninParams) (*AuthResult, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	email := domainuser.NormalizeEmail(params.Email)
	if err := emailCheck.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}
	user, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.Passwords.Compare(user.PasswordHash, params.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	token, err := s.Tokens.Issue(user.Email, s.now())
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("user authenticated", "user_id", user.ID)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Resolve maps a bearer token to the stored user.
func (s *Service) Resolve(ctx context.Context, token string) (*domainuser.User, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	subject, err := s.Tokens.Subject(token)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if strings.TrimSpace(subject) == "" {
		return nil, ErrInvalidToken
	}
	user, err := s.Users.ByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) recordRegistration(ctx context.Context, user *domainuser.User) {
	if s.Outbox == nil {
		return
	}
	ev := domainuser.Registered{UserID: user.ID, Email: user.Email, Name: user.Name, At: user.CreatedAt}
	err := outbox.Record(ctx, s.Outbox, s.Encoder, ev)
	if err == nil {
		err = s.Outbox.Flush(ctx)
	}
	if err != nil && s.Logger != nil {
		s.Logger.Warn("registration event not recorded", "user_id", user.ID, "error", err)
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ensureDependencies() error {
	switch {
	case s.Users == nil:
		return errors.New("auth: user repository required")
	case s.Passwords == nil:
		return errors.New("auth: password hasher required")
	case s.Tokens == nil:
		return errors.New("auth: token issuer required")
	default:
		return nil
	}
}
