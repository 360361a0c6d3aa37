package shared

import (
	"context"

	"github.com/eventharmony/eventharmony/internal/policy"
)

type principalContextKey struct{}

// ContextWithPrincipal stores the resolved principal in context.
func ContextWithPrincipal(ctx context.Context, p policy.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context. The second return
// is false when no resolver ran, in which case callers should treat the
// request as anonymous.
func PrincipalFromContext(ctx context.Context) (policy.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(policy.Principal)
	return p, ok
}
