package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

// UserIDFromContext returns the authenticated user id placed into the
// context by the access-token interceptor.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok
}

// isPublicMethod reports whether a method is reachable without an access
// token: health checks and the operations that mint or redeem tokens
// themselves.
func isPublicMethod(fullMethod string) bool {
	if strings.HasPrefix(fullMethod, "/grpc.health.v1.Health/") {
		return true
	}
	switch fullMethod {
	case "/authkeeper.service.AuthKeeperService/SignUp",
		"/authkeeper.service.AuthKeeperService/SignIn",
		"/authkeeper.service.AuthKeeperService/Refresh",
		"/authkeeper.service.AuthKeeperService/RequestReset",
		"/authkeeper.service.AuthKeeperService/ResetPassword":
		return true
	}
	return false
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if !isPublicMethod(info.FullMethod) {

		var accessToken string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			values := md.Get(common.AccessTokenHeaderName)
			if len(values) > 0 {
				accessToken = values[0]
			}
		}
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		// full validation: signature, claims, and the stored record, so a
		// revoked access token is refused even before its exp
		_, claims, err := s.validator.ValidateAccess(ctx, accessToken)
		if err != nil {
			s.logger.Info(ctx, "access token refused", "method", info.FullMethod, "reason", err.Error())
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	}

	return handler(ctx, req)
}
