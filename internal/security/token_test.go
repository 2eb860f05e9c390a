package security_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rtchat/internal/security"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := security.NewTokenService("secret", time.Hour)

	token, err := svc.CreateForUser("507f1f77bcf86cd799439011")
	assert.NoError(t, err)

	sub, err := svc.Parse(token)
	assert.NoError(t, err)
	assert.Equal(t, "507f1f77bcf86cd799439011", sub)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	token, err := security.NewTokenService("secret", time.Hour).CreateForUser("507f1f77bcf86cd799439011")
	assert.NoError(t, err)

	_, err = security.NewTokenService("other", time.Hour).Parse(token)
	assert.Error(t, err)
}

func TestTokenRejectsExpired(t *testing.T) {
	svc := security.NewTokenService("secret", -time.Minute)

	token, err := svc.CreateForUser("507f1f77bcf86cd799439011")
	assert.NoError(t, err)

	_, err = svc.Parse(token)
	assert.Error(t, err)
}
