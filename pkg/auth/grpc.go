package auth

import (
	"context"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	sserr "github.com/StricklySoft/stricklysoft-cognito-auth/pkg/errors"
)

// errorInfoDomain is the ErrorInfo domain attached to gRPC auth errors.
const errorInfoDomain = "auth.stricklysoft.io"

// healthMethodPrefix matches the standard gRPC health service, whose
// methods are served without authentication.
var healthMethodPrefix = "/" + healthpb.Health_ServiceDesc.ServiceName + "/"

func isHealthMethod(fullMethod string) bool {
	return strings.HasPrefix(fullMethod, healthMethodPrefix)
}

// UnaryServerInterceptor returns a gRPC unary server interceptor that
// authenticates the "authorization" metadata value.
//
// Rejections map to codes.Unauthenticated (401) or codes.Internal (500);
// the status message is the same public message the HTTP middleware
// sends, and an ErrorInfo detail carries the public error code. Calls to
// grpc.health.v1.Health are not authenticated.
func (a *Authenticator) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if isHealthMethod(info.FullMethod) {
			return handler(ctx, req)
		}
		ctx, err := a.authenticateGRPC(ctx)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor is the streaming counterpart of
// [Authenticator.UnaryServerInterceptor].
func (a *Authenticator) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if isHealthMethod(info.FullMethod) {
			return handler(srv, ss)
		}
		ctx, err := a.authenticateGRPC(ss.Context())
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

func (a *Authenticator) authenticateGRPC(ctx context.Context) (context.Context, error) {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(HeaderAuthorization); len(vals) > 0 {
			header = vals[0]
		}
	}

	principal, authErr := a.Authenticate(ctx, header)
	if authErr != nil {
		return ctx, grpcStatus(authErr).Err()
	}
	return ContextWithPrincipal(ctx, principal), nil
}

// grpcStatus converts an auth error into a gRPC status.
func grpcStatus(err *sserr.Error) *status.Status {
	code := codes.Unauthenticated
	if err.Code == sserr.CodeInternal {
		code = codes.Internal
	}
	st := status.New(code, err.Message)
	withInfo, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: string(err.Code),
		Domain: errorInfoDomain,
	})
	if detailErr != nil {
		return st
	}
	return withInfo
}

// wrappedServerStream overrides Context so handlers see the Principal.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
