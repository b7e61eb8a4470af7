package health

import (
	"context"
	"errors"
	"sync/atomic"
)

// Checker is evaluated per request: nil means pass, an error is the reason for failing.
type Checker interface{ Check(context.Context) error }

// CheckFunc adapts a function into a Checker.
type CheckFunc func(context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Fixed always returns err.
func Fixed(err error) CheckFunc {
	return func(context.Context) error { return err }
}

// OK always passes.
var OK = Fixed(nil)

// All passes when every check passes. Failures are joined in check order so
// the readiness body lists each reason on its own line. Nil checks are skipped.
func All(ps ...Checker) CheckFunc {
	return func(ctx context.Context) error {
		var errs []error
		for _, p := range ps {
			if p == nil {
				continue
			}
			if err := p.Check(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// ErrDraining is reported by a Gate drained without a reason.
var ErrDraining = errors.New("draining")

// Gate fails readiness once Drain is called so the load balancer stops
// routing to the instance before in-flight requests finish. The zero value
// is open.
type Gate struct {
	reason atomic.Pointer[string]
}

// Drain closes the gate. Later calls replace the reason.
func (g *Gate) Drain(reason string) { g.reason.Store(&reason) }

func (g *Gate) Draining() bool { return g.reason.Load() != nil }

func (g *Gate) Check(context.Context) error {
	r := g.reason.Load()
	switch {
	case r == nil:
		return nil
	case *r == "":
		return ErrDraining
	default:
		return errors.New(*r)
	}
}
