package monthly

import "context"

// Identity supplies the signed-in user. No user means no operation is
// possible.
type Identity interface {
	UserID(ctx context.Context) (string, bool)
}

// IdentityFunc adapts a function to Identity.
type IdentityFunc func(ctx context.Context) (string, bool)

func (f IdentityFunc) UserID(ctx context.Context) (string, bool) {
	return f(ctx)
}

type userKey struct{}

// WithUser returns a context carrying userID for ContextIdentity.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// ContextIdentity reads the user stored by WithUser.
var ContextIdentity Identity = IdentityFunc(func(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok && id != ""
})
