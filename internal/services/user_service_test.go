package services

import (
	"context"
	"errors"
	"testing"

	"carpool-backend/internal/apperrors"
	"carpool-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterDeviceTokenForRole(t *testing.T) {
	users := newFakeUserStore()
	svc := NewUserService(users, zap.NewNop())

	profiles, err := svc.RegisterDeviceToken(context.Background(), "user-1", RegisterDeviceTokenInput{
		Token:       " fcm-1 ",
		Role:        models.UserRoleDriver,
		DisplayName: "Minh",
	})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, models.UserRoleDriver, profiles[0].Role)
	assert.Equal(t, "Minh", profiles[0].DisplayName)
	require.True(t, profiles[0].HasDeviceToken())
	assert.Equal(t, "fcm-1", *profiles[0].DeviceToken)
}

func TestRegisterDeviceTokenBothRoles(t *testing.T) {
	users := newFakeUserStore()
	svc := NewUserService(users, zap.NewNop())

	profiles, err := svc.RegisterDeviceToken(context.Background(), "user-1", RegisterDeviceTokenInput{Token: "fcm-1"})
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, models.UserRoleDriver, profiles[0].Role)
	assert.Equal(t, models.UserRolePassenger, profiles[1].Role)
}

func TestRegisterDeviceTokenReplacesToken(t *testing.T) {
	users := newFakeUserStore()
	svc := NewUserService(users, zap.NewNop())
	ctx := context.Background()

	_, err := svc.RegisterDeviceToken(ctx, "user-1", RegisterDeviceTokenInput{Token: "old", Role: models.UserRolePassenger, DisplayName: "Linh"})
	require.NoError(t, err)
	profiles, err := svc.RegisterDeviceToken(ctx, "user-1", RegisterDeviceTokenInput{Token: "new", Role: models.UserRolePassenger})
	require.NoError(t, err)

	require.Len(t, profiles, 1)
	assert.Equal(t, "new", *profiles[0].DeviceToken)
	assert.Equal(t, "Linh", profiles[0].DisplayName)
}

func TestRegisterDeviceTokenValidation(t *testing.T) {
	svc := NewUserService(newFakeUserStore(), zap.NewNop())

	tests := []RegisterDeviceTokenInput{
		{Token: "  "},
		{Token: "fcm", Role: "admin"},
		{Token: "fcm", Email: "not-an-email"},
	}
	for _, in := range tests {
		_, err := svc.RegisterDeviceToken(context.Background(), "user-1", in)
		assert.True(t, errors.Is(err, apperrors.ErrValidation), "input %+v: %v", in, err)
	}
}

func TestRegisterDeviceTokenStoreFailure(t *testing.T) {
	users := newFakeUserStore()
	users.err = errors.New("db down")
	svc := NewUserService(users, zap.NewNop())

	_, err := svc.RegisterDeviceToken(context.Background(), "user-1", RegisterDeviceTokenInput{Token: "fcm"})
	assert.True(t, errors.Is(err, apperrors.ErrUpstream))
}
