package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rtchat/internal/domain"
	"rtchat/internal/security"
	"rtchat/internal/service"
)

func newAuthFixture() (*service.AuthService, *security.TokenService, *memUserRepo) {
	users := newMemUserRepo()
	tokens := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4) // low cost for tests
	return service.NewAuthService(users, tokens, hasher), tokens, users
}

func TestRegister(t *testing.T) {
	svc, _, _ := newAuthFixture()
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		user, err := svc.Register(ctx, service.RegisterInput{
			Username: "newuser",
			FullName: "New User",
			Password: "Password1!",
		})
		assert.NoError(t, err)
		assert.True(t, domain.IsDurableID(user.ID))
		assert.Equal(t, "newuser", user.Username)
		assert.True(t, user.IsActive)
		assert.NotEqual(t, "Password1!", user.HashedPassword)
	})

	t.Run("UsernameTaken", func(t *testing.T) {
		_, err := svc.Register(ctx, service.RegisterInput{Username: "newuser", Password: "x1234567"})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("MissingFields", func(t *testing.T) {
		_, err := svc.Register(ctx, service.RegisterInput{Username: "nouser"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestLogin(t *testing.T) {
	svc, tokens, users := newAuthFixture()
	ctx := context.Background()

	registered, err := svc.Register(ctx, service.RegisterInput{
		Username: "alice",
		Password: "Password1!",
	})
	assert.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		resp, err := svc.Login(ctx, service.LoginInput{Username: "alice", Password: "Password1!"})
		assert.NoError(t, err)
		assert.Equal(t, "bearer", resp.TokenType)

		sub, err := tokens.Parse(resp.AccessToken)
		assert.NoError(t, err)
		assert.Equal(t, registered.ID, sub)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := svc.Login(ctx, service.LoginInput{Username: "alice", Password: "nope"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, err := svc.Login(ctx, service.LoginInput{Username: "ghost", Password: "Password1!"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("InactiveUser", func(t *testing.T) {
		registered.IsActive = false
		defer func() { registered.IsActive = true }()

		_, err := svc.Login(ctx, service.LoginInput{Username: "alice", Password: "Password1!"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("LogoutTouchesLastSeen", func(t *testing.T) {
		assert.NoError(t, svc.Logout(ctx, registered.ID))
		u, err := users.GetByID(ctx, registered.ID)
		assert.NoError(t, err)
		assert.False(t, u.LastSeen.IsZero())
	})
}
