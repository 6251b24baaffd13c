package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
	"github.com/fekuna/omnipos-retail-service/internal/model"
)

// Session is the resolved caller: who they are, which shop they act for and
// in which role. It is passed explicitly into every usecase.
type Session struct {
	UserID string
	ShopID string
	Role   model.Role
}

func (s Session) IsOwner() bool {
	return s.Role == model.RoleOwner
}

// Validate fails with ErrUnauthorized unless the session names a user and a shop.
func (s Session) Validate() error {
	if s.UserID == "" || s.ShopID == "" {
		return apperror.Unauthorized("no resolvable session")
	}
	return nil
}

func (s Session) RequireOwner() error {
	if err := s.Validate(); err != nil {
		return err
	}
	if !s.IsOwner() {
		return apperror.Forbidden("owner role required")
	}
	return nil
}

const userIDHeader = "x-user-id"

type userIDKey struct{}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserID returns the caller identity asserted by the upstream gateway,
// either placed in the context by UnaryInterceptor or read from metadata.
func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey{}).(string); ok {
		return val
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if val := md.Get(userIDHeader); len(val) > 0 {
			return val[0]
		}
	}
	return ""
}

func UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if userID := GetUserID(ctx); userID != "" {
			ctx = WithUserID(ctx, userID)
		}
		return handler(ctx, req)
	}
}

// Resolver maps a user id to its shop profile.
type Resolver interface {
	ResolveSession(ctx context.Context, userID string) (Session, error)
}

// FromContext resolves the caller of the current request.
func FromContext(ctx context.Context, r Resolver) (Session, error) {
	userID := GetUserID(ctx)
	if userID == "" {
		return Session{}, apperror.Unauthorized("missing caller identity")
	}
	return r.ResolveSession(ctx, userID)
}
