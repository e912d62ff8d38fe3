package auth_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	authsvc "sprinter/internal/app/services/auth"
	domainuser "sprinter/internal/domain/user"
	"sprinter/internal/infra/security"
	"sprinter/internal/infra/storage/memory"
)

type fixture struct {
	svc    *authsvc.Service
	users  *memory.UserRepository
	outbox *memory.Outbox
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	tokens, err := security.NewJWTIssuer("test-secret", "HS256", time.Hour)
	require.NoError(t, err)
	users := memory.NewUserRepository()
	box := memory.NewOutbox()
	return fixture{
		svc: &authsvc.Service{
			Users:     users,
			Passwords: security.BcryptHasher{Cost: bcrypt.MinCost},
			Tokens:    tokens,
			Outbox:    box,
		},
		users:  users,
		outbox: box,
	}
}

func TestSignupStoresUserAndRecordsEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Signup(ctx, authsvc.SignupParams{Name: " Usain ", Email: "Bolt@Example.com ", Password: "lightning"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.Equal(t, "Usain", res.User.Name)
	assert.Equal(t, "bolt@example.com", res.User.Email)

	stored, err := f.users.ByEmail(ctx, "bolt@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "lightning", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("lightning")))

	msgs := f.outbox.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "user.registered", msgs[0].Name)
	assert.Equal(t, string(stored.ID), msgs[0].Aggregate)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &payload))
	assert.Equal(t, "bolt@example.com", payload["email"])
	assert.NotContains(t, string(msgs[0].Payload), stored.PasswordHash)
}

func TestSignupRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		params authsvc.SignupParams
		want   error
	}{
		{"bad email", authsvc.SignupParams{Name: "Ann", Email: "not-an-email", Password: "secret1"}, authsvc.ErrInvalidEmail},
		{"empty email", authsvc.SignupParams{Name: "Ann", Email: "  ", Password: "secret1"}, authsvc.ErrInvalidEmail},
		{"short password", authsvc.SignupParams{Name: "Ann", Email: "ann@example.com", Password: "12345"}, authsvc.ErrPasswordTooShort},
		{"short name", authsvc.SignupParams{Name: "A", Email: "ann@example.com", Password: "secret1"}, domainuser.ErrNameLength},
		{"long name", authsvc.SignupParams{Name: strings.Repeat("a", 101), Email: "ann@example.com", Password: "secret1"}, domainuser.ErrNameLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Signup(context.Background(), tt.params)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.outbox.Messages())
		})
	}
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, authsvc.SignupParams{Name: "Ann", Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = f.svc.Signup(ctx, authsvc.SignupParams{Name: "Other", Email: "ANN@example.com", Password: "secret2"})
	assert.ErrorIs(t, err, authsvc.ErrEmailAlreadyRegistered)
	assert.Len(t, f.outbox.Messages(), 1)
}

func TestSigninAndResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	signup, err := f.svc.Signup(ctx, authsvc.SignupParams{Name: "Ann", Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)

	res, err := f.svc.Signin(ctx, authsvc.SigninParams{Email: " Ann@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, signup.User.ID, res.User.ID)

	user, err := f.svc.Resolve(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", user.Email)
}

func TestSigninRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, authsvc.SignupParams{Name: "Ann", Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = f.svc.Signin(ctx, authsvc.SigninParams{Email: "ann@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, authsvc.ErrInvalidCredentials)

	_, err = f.svc.Signin(ctx, authsvc.SigninParams{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, authsvc.ErrInvalidCredentials, "unknown email must look like a wrong password")

	_, err = f.svc.Signin(ctx, authsvc.SigninParams{Email: "not-an-email", Password: "secret1"})
	assert.ErrorIs(t, err, authsvc.ErrInvalidEmail)
	_, err = f.svc.Signin(ctx, authsvc.SigninParams{Email: " ", Password: "secret1"})
	assert.ErrorIs(t, err, authsvc.ErrInvalidEmail)
}

func TestResolveRejectsInvalidTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Resolve(ctx, "")
	assert.ErrorIs(t, err, authsvc.ErrInvalidToken)

	_, err = f.svc.Resolve(ctx, "garbage.token.value")
	assert.ErrorIs(t, err, authsvc.ErrInvalidToken)

	other, err := security.NewJWTIssuer("another-secret", "HS256", time.Hour)
	require.NoError(t, err)
	forged, err := other.Issue("ann@example.com", time.Now())
	require.NoError(t, err)
	_, err = f.svc.Resolve(ctx, forged)
	assert.ErrorIs(t, err, authsvc.ErrInvalidToken)
}

func TestResolveUnknownUser(t *testing.T) {
	f := newFixture(t)
	tokens, err := security.NewJWTIssuer("test-secret", "HS256", time.Hour)
	require.NoError(t, err)
	token, err := tokens.Issue("ghost@example.com", time.Now())
	require.NoError(t, err)

	_, err = f.svc.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, authsvc.ErrUserNotFound)
}

func TestServiceRequiresDependencies(t *testing.T) {
	svc := &authsvc.Service{}
	_, err := svc.Signup(context.Background(), authsvc.SignupParams{Name: "Ann", Email: "ann@example.com", Password: "secret1"})
	assert.Error(t, err)
}
