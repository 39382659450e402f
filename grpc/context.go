// Package grpc provides server interceptors that authenticate incoming
// requests with a secretkeeper session token carried in gRPC metadata.
package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// DefaultMetadataKeyToken is the default gRPC metadata key carrying the
// session token. Values may be sent raw or with a "Bearer " prefix.
const DefaultMetadataKeyToken = "x-session-token"

type accountIDKey struct{}

// AccountIDFromContext extracts the authenticated account ID placed in the
// context by one of the auth interceptors. Returns empty string if the
// request was not authenticated.
func AccountIDFromContext(ctx context.Context) string {
	accountID, _ := ctx.Value(accountIDKey{}).(string)
	return accountID
}

// NewContextWithAccountID returns a context carrying the given account ID,
// as the interceptors do after validating a token. Useful in tests and in
// servers that authenticate out of band.
func NewContextWithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey{}, accountID)
}

// IsAuthenticated returns true if there is an authenticated account in the context.
func IsAuthenticated(ctx context.Context) bool {
	return AccountIDFromContext(ctx) != ""
}

// TokenToOutgoingContext adds a session token to outgoing gRPC metadata so
// a client call passes the server-side auth interceptors.
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return TokenToOutgoingContextWithKey(ctx, token, DefaultMetadataKeyToken)
}

// TokenToOutgoingContextWithKey adds a session token under a custom metadata key.
func TokenToOutgoingContextWithKey(ctx context.Context, token string, key string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, key, token)
}
