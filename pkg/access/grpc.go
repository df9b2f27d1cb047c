package access

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	agerr "github.com/StricklySoft/accessguard/pkg/errors"
)

// MetadataAssertion is the gRPC metadata key carrying the token.
var MetadataAssertion = strings.ToLower(HeaderAssertion)

// UnaryServerInterceptor authenticates unary calls. Calls without a valid
// token fail with codes.Unauthenticated before the handler runs.
func UnaryServerInterceptor(verifier TokenVerifier, mapper RoleMapper) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := authenticateGRPC(ctx, verifier, mapper, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor is UnaryServerInterceptor for streams.
func StreamServerInterceptor(verifier TokenVerifier, mapper RoleMapper) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := authenticateGRPC(ss.Context(), verifier, mapper, info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

func authenticateGRPC(ctx context.Context, verifier TokenVerifier, mapper RoleMapper, method string) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, status.Error(codes.Unauthenticated, "missing metadata")
	}
	var raw string
	if vals := md.Get(MetadataAssertion); len(vals) > 0 {
		raw = strings.TrimSpace(vals[0])
	}

	user, err := Authenticate(ctx, verifier, mapper, raw)
	if err != nil {
		slog.DebugContext(ctx, "access: rejected call",
			"method", method,
			"code", agerr.GetCode(err),
		)
		return ctx, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return ContextWithUser(ctx, user), nil
}

// wrappedServerStream overrides Context so handlers see the User.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
