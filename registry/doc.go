// Package registry is the capability registry: it maps a declared
// capability (a Go type plus an optional name) to the implementations
// registered for it and constructs them according to their lifetime.
//
// # Registering
//
//	r := registry.New()
//
//	// Constructor injection: parameters are resolved by type.
//	ref, err := registry.Provide(r, NewManifestHandler,
//	    registry.WithLifetime(registry.Transient))
//
//	// Ready-made values are singletons.
//	_, err = registry.Supply[*slog.Logger](r, logger)
//
// # Resolving
//
//	h, err := registry.Inject[*ManifestHandler](r)
//	q, err := registry.InjectNamed[*queue.FIFO](scope, "main")
//	all, err := registry.InjectAll[Auditor](r)
//
// Resolve returns the most recent registration for a key, ResolveAll every
// registration in registration order.
//
// # Lifetimes
//
//   - [Singleton]: constructed at most once per Registry.
//   - [Scoped]: constructed at most once per [Scope]; resolving from the
//     Registry itself uses its root scope.
//   - [Transient]: constructed on every resolution.
//
// Instances implementing io.Closer are closed by the owner that constructed
// them: singletons by [Registry.Close], scoped and transient instances by
// [Scope.Close].
//
// # Aliases
//
// [Alias] adds a registration under another key that resolves through an
// existing one and projects the result, so several capabilities share one
// constructed instance.
package registry
