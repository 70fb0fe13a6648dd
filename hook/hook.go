package hook

import (
	"context"
	"fmt"
)

// Kind identifies an event kind.
type Kind int

const (
	KindGet Kind = iota + 1
	KindAdd
	KindUpsert
	KindUpdate
	KindDelete
	KindJobExecute
)

// Kinds lists every event kind.
var Kinds = []Kind{KindGet, KindAdd, KindUpsert, KindUpdate, KindDelete, KindJobExecute}

func (k Kind) String() string {
	switch k {
	case KindGet:
		return "get"
	case KindAdd:
		return "add"
	case KindUpsert:
		return "upsert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindJobExecute:
		return "job_execute"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Method returns the hook method name for the kind.
func (k Kind) Method() string {
	switch k {
	case KindGet:
		return "OnGet"
	case KindAdd:
		return "OnAdd"
	case KindUpsert:
		return "OnUpsert"
	case KindUpdate:
		return "OnUpdate"
	case KindDelete:
		return "OnDelete"
	case KindJobExecute:
		return "OnJobExecute"
	default:
		return ""
	}
}

// ──────────────────────────────────────────────────
// Asset hooks
// ──────────────────────────────────────────────────

// OnGet is called on every lookup. asset is the zero value when found is
// false.
type OnGet[K comparable, A any] interface {
	OnGet(ctx context.Context, key K, asset A, found bool) error
}

// OnAdd is called after an asset was added.
type OnAdd[A any] interface {
	OnAdd(ctx context.Context, asset A) error
}

// OnUpsert is called after an asset was inserted or replaced.
type OnUpsert[A any] interface {
	OnUpsert(ctx context.Context, asset A) error
}

// OnUpdate is called after an existing asset was replaced.
type OnUpdate[A any] interface {
	OnUpdate(ctx context.Context, asset A) error
}

// OnDelete is called after an asset was removed.
type OnDelete[K comparable, A any] interface {
	OnDelete(ctx context.Context, key K, asset A) error
}

// ──────────────────────────────────────────────────
// Job hooks
// ──────────────────────────────────────────────────

// Next continues job execution.
type Next = func(ctx context.Context) error

// OnJobExecute wraps every executor run for jobs of type J. The hook must
// call next to run the executor; returning without calling it skips the
// executor.
type OnJobExecute[J any] interface {
	OnJobExecute(ctx context.Context, job J, next Next) error
}
