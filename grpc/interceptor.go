package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// InterceptorConfig configures the auth interceptors.
type InterceptorConfig struct {
	// MetadataKeyToken is the gRPC metadata key carrying the session token.
	// Defaults to "x-session-token".
	MetadataKeyToken string

	// ValidateToken maps a session token to an account ID. Typically
	// secretkeeper.TokenSigner.Verify or a SessionManager.Validate closure.
	// Required.
	ValidateToken func(token string) (accountID string, err error)

	// RequireAuth when true rejects requests with no valid token.
	// When false, requests proceed but AccountIDFromContext returns empty.
	RequireAuth bool

	// PublicMethods is a set of method names that don't require auth.
	// Only used when RequireAuth is true.
	// Keys should be full method names like "/package.Service/Method".
	PublicMethods map[string]bool
}

// NewInterceptorConfig returns a config that requires auth for all methods
// except the ones listed.
func NewInterceptorConfig(validate func(string) (string, error), publicMethods ...string) *InterceptorConfig {
	config := &InterceptorConfig{
		MetadataKeyToken: DefaultMetadataKeyToken,
		ValidateToken:    validate,
		RequireAuth:      true,
		PublicMethods:    make(map[string]bool),
	}
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// OptionalAuthConfig returns a config that resolves tokens when present but
// allows unauthenticated requests through.
func OptionalAuthConfig(validate func(string) (string, error)) *InterceptorConfig {
	return &InterceptorConfig{
		MetadataKeyToken: DefaultMetadataKeyToken,
		ValidateToken:    validate,
		RequireAuth:      false,
		PublicMethods:    make(map[string]bool),
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *InterceptorConfig) EnsureDefaults() {
	if c.MetadataKeyToken == "" {
		c.MetadataKeyToken = DefaultMetadataKeyToken
	}
	if c.PublicMethods == nil {
		c.PublicMethods = make(map[string]bool)
	}
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that validates the
// session token in request metadata and puts the account ID in the context.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	config.EnsureDefaults()

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, err := config.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor returns a gRPC stream interceptor that validates the
// session token in request metadata and puts the account ID in the context.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	config.EnsureDefaults()

	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := config.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
	}
}

// authenticate resolves the token for a method, returning a context with the
// account ID or an Unauthenticated error.
func (c *InterceptorConfig) authenticate(ctx context.Context, fullMethod string) (context.Context, error) {
	accountID := ""
	if token := c.tokenFromContext(ctx); token != "" && c.ValidateToken != nil {
		if id, err := c.ValidateToken(token); err == nil {
			accountID = id
		}
	}

	if accountID == "" {
		if c.RequireAuth && !c.PublicMethods[fullMethod] {
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}
		return ctx, nil
	}
	return NewContextWithAccountID(ctx, accountID), nil
}

func (c *InterceptorConfig) tokenFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(c.MetadataKeyToken)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimPrefix(values[0], "Bearer ")
}

// wrappedStream overrides the stream context so handlers see the account ID.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}
