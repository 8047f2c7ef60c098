package procedure

import (
	"context"
	"iter"
	"slices"

	apperrors "github.com/tasknest/tasknest/internal/errors"
)

// Next advances the chain, handing the (possibly extended) procedure context
// to the following middleware or, at the end of the chain, to the terminal
// handler.
type Next func(ctx context.Context, pc Context) (any, error)

// Handler is the terminal step of a chain.
type Handler func(ctx context.Context, pc Context) (any, error)

// Middleware wraps the rest of the chain. Calling next at most once is part
// of the contract; not calling it short-circuits the chain, and a middleware
// may transform the result after next returns.
type Middleware func(ctx context.Context, pc Context, next Next) (any, error)

// Proc is a built procedure, ready to invoke once per request.
type Proc func(ctx context.Context) (any, error)

// StreamHandler is a terminal step producing a lazy sequence.
type StreamHandler func(ctx context.Context, pc Context) iter.Seq2[any, error]

// StreamProc is a built streaming procedure. The error return covers the
// middleware phase; per-element errors surface through the sequence.
type StreamProc func(ctx context.Context) (iter.Seq2[any, error], error)

// Builder accumulates middlewares in registration order.
type Builder struct {
	middlewares []Middleware
}

// New returns a builder with an empty middleware list.
func New() *Builder {
	return &Builder{}
}

// Use appends a middleware. Registration order is execution order: the first
// registered middleware is the outermost layer.
func (b *Builder) Use(mw Middleware) *Builder {
	b.middlewares = append(b.middlewares, mw)
	return b
}

// Build finalizes the chain around a terminal handler.
//
// Each invocation of the returned Proc dispatches the onion with its own
// highest-index guard, so concurrent invocations never interfere. A
// middleware invoking its next continuation more than once during a single
// dispatch is a programming error and fails with an internal error rather
// than silently re-running downstream logic.
func (b *Builder) Build(handler Handler) Proc {
	mws := slices.Clone(b.middlewares)
	return func(ctx context.Context) (any, error) {
		lastIndex := -1
		var dispatch func(i int, ctx context.Context, pc Context) (any, error)
		dispatch = func(i int, ctx context.Context, pc Context) (any, error) {
			if i <= lastIndex {
				return nil, apperrors.Internal("next() called multiple times")
			}
			lastIndex = i
			if i == len(mws) {
				return handler(ctx, pc)
			}
			next := func(ctx context.Context, pc Context) (any, error) {
				return dispatch(i+1, ctx, pc)
			}
			return mws[i](ctx, pc, next)
		}
		return dispatch(0, ctx, Context{})
	}
}

// BuildSeq finalizes the chain around a lazy-sequence handler.
//
// The chain runs in two phases: first the full middleware chain executes
// with a context-capturing terminal step, so every authorization check
// completes before any output is produced; then the handler receives the
// final context and its sequence is returned to the caller. If a middleware
// fails, the error is returned and no sequence is created. If a middleware
// short-circuits without error, the result is an empty sequence.
func (b *Builder) BuildSeq(handler StreamHandler) StreamProc {
	return func(ctx context.Context) (iter.Seq2[any, error], error) {
		var (
			finalCtx context.Context
			finalPC  Context
			reached  bool
		)
		proc := b.Build(func(ctx context.Context, pc Context) (any, error) {
			finalCtx, finalPC, reached = ctx, pc, true
			return nil, nil
		})
		if _, err := proc(ctx); err != nil {
			return nil, err
		}
		if !reached {
			return func(func(any, error) bool) {}, nil
		}
		return handler(finalCtx, finalPC), nil
	}
}
