package strategy

import "context"

// Fallback invokes the operation exactly once and converts failure into a
// defined degraded value. It is the only built-in strategy that never returns
// an error.
type Fallback struct {
	name string
	fn   func(ctx context.Context, err error) any
}

// NewFallbackValue returns a fallback strategy that resolves to the static
// value v when the operation fails.
func NewFallbackValue(name string, v any) *Fallback {
	return &Fallback{
		name: name,
		fn:   func(context.Context, error) any { return v },
	}
}

// NewFallbackFunc returns a fallback strategy that resolves to fn(ctx, err)
// when the operation fails, letting the caller derive the degraded value from
// the failure itself.
func NewFallbackFunc(name string, fn func(ctx context.Context, err error) any) *Fallback {
	return &Fallback{name: name, fn: fn}
}

func (s *Fallback) Name() string { return s.name }

func (s *Fallback) Execute(ctx context.Context, op Operation) (any, error) {
	v, err := op(ctx)
	if err == nil {
		return v, nil
	}
	return s.fn(ctx, err), nil
}
