package httpmw

import "net/http"

// Middleware wraps a handler. Every middleware either calls next or writes
// its own response.
type Middleware = func(http.Handler) http.Handler

// Compose folds mws into one middleware, skipping nil entries. mws[0] is the
// outermost: first on the way in, last on the way out.
func Compose(mws ...Middleware) Middleware {
	return func(h http.Handler) http.Handler {
		for i := range mws {
			if mw := mws[len(mws)-1-i]; mw != nil {
				h = mw(h)
			}
		}
		return h
	}
}

// Chain wraps h in mws, mws[0] outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	return Compose(mws...)(h)
}

// MaxBody caps request bodies at limit bytes. Reading past the cap fails and
// makes net/http answer 413 if nothing was written yet.
func MaxBody(limit int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
