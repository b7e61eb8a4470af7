package httpmw

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/keithlinneman/draftsite/internal/log"
	"github.com/keithlinneman/draftsite/internal/xerrors"
)

// panicError turns a recovered value into an error that keeps the original
// when it already is one.
func panicError(v any) error {
	if err, ok := v.(error); ok {
		return xerrors.Wrap(err, "panic")
	}
	return xerrors.New(fmt.Sprint("panic: ", v))
}

// Recover answers a handler panic with a plain 500 and logs it with the
// goroutine stack. onPanic runs after logging. http.ErrAbortHandler is
// re-raised so net/http can drop the connection quietly.
func Recover(logger log.Logger, onPanic func()) Middleware {
	if logger == nil {
		logger = log.Nop()
	}
	if onPanic == nil {
		onPanic = func() {}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}
				ctx := r.Context()
				log.FromContextOr(ctx, logger).Error(ctx, panicError(v), "httpserver panic recovered",
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
					"request_id", RequestIDFromContext(ctx),
					"stack", string(debug.Stack()),
				)
				onPanic()
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
