package registry

import "context"

type resolverKey struct{}

// WithResolver returns a copy of ctx carrying res. Code running inside a
// job uses it to resolve from the job's scope.
func WithResolver(ctx context.Context, res Resolver) context.Context {
	if res == nil {
		return ctx
	}
	return context.WithValue(ctx, resolverKey{}, res)
}

// ResolverFrom returns the resolver attached by WithResolver.
func ResolverFrom(ctx context.Context) (Resolver, bool) {
	res, ok := ctx.Value(resolverKey{}).(Resolver)
	return res, ok
}
