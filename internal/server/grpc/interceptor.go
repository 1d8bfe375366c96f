package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
	"github.com/dmitrijs2005/memberkeeper/internal/server/auth"
)

// publicServices are reachable without a token.
var publicServices = []string{
	"/grpc.health.v1.Health/",
}

func isPublic(fullMethod string) bool {
	for _, prefix := range publicServices {
		if strings.HasPrefix(fullMethod, prefix) {
			return true
		}
	}
	return false
}

// authenticate resolves the bearer token in the incoming "authorization"
// metadata and returns ctx carrying the caller's identity.
func (s *Server) authenticate(ctx context.Context, fullMethod string) (context.Context, error) {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(strings.ToLower(common.AuthorizationHeaderName)); len(values) > 0 {
			header = values[0]
		}
	}
	if header == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	id, err := s.guard.Authenticate(header)
	if err != nil {
		s.logger.Debug(ctx, "authentication failed", "method", fullMethod, "error", err)
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	return auth.WithIdentity(ctx, id), nil
}

func (s *Server) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if isPublic(info.FullMethod) {
		return handler(ctx, req)
	}

	ctx, err := s.authenticate(ctx, info.FullMethod)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context { return s.ctx }

func (s *Server) accessTokenStreamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if isPublic(info.FullMethod) {
		return handler(srv, ss)
	}

	ctx, err := s.authenticate(ss.Context(), info.FullMethod)
	if err != nil {
		return err
	}
	return handler(srv, &identityStream{ServerStream: ss, ctx: ctx})
}
