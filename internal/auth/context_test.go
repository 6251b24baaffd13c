package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	"github.com/fekuna/omnipos-retail-service/internal/model"
)

type staticResolver map[string]Session

func (r staticResolver) ResolveSession(_ context.Context, userID string) (Session, error) {
	s, ok := r[userID]
	if !ok {
		return Session{}, apperror.Unauthorized("unknown user %s", userID)
	}
	return s, nil
}

func TestGetUserID(t *testing.T) {
	assert.Equal(t, "", GetUserID(context.Background()))

	md := metadata.Pairs(userIDHeader, "user-1")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	assert.Equal(t, "user-1", GetUserID(ctx))

	assert.Equal(t, "user-2", GetUserID(WithUserID(ctx, "user-2")))
}

func TestUnaryInterceptor(t *testing.T) {
	md := metadata.Pairs(userIDHeader, "rep-1")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	var seen string
	_, err := UnaryInterceptor()(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		seen, _ = ctx.Value(userIDKey{}).(string)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "rep-1", seen)
}

func TestFromContext(t *testing.T) {
	r := staticResolver{"rep-1": {UserID: "rep-1", ShopID: "shop-1", Role: model.RoleSalesRep}}

	_, err := FromContext(context.Background(), r)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	s, err := FromContext(WithUserID(context.Background(), "rep-1"), r)
	require.NoError(t, err)
	assert.Equal(t, "shop-1", s.ShopID)

	_, err = FromContext(WithUserID(context.Background(), "ghost"), r)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestSessionChecks(t *testing.T) {
	assert.ErrorIs(t, Session{UserID: "u"}.Validate(), apperror.ErrUnauthorized)
	assert.ErrorIs(t, Session{UserID: "u", ShopID: "s", Role: model.RoleSalesRep}.RequireOwner(), apperror.ErrForbidden)
	assert.NoError(t, Session{UserID: "u", ShopID: "s", Role: model.RoleOwner}.RequireOwner())
}
