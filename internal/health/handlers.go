package health

import "net/http"

// HealthzHandler: 200 OK when check passes, 503 otherwise (with reason)
func HealthzHandler(p Checker) http.HandlerFunc {
	return checkHandler(p, "ok\n")
}

// ReadyzHandler: 200 OK when check passes, 503 otherwise (with reason)
func ReadyzHandler(p Checker) http.HandlerFunc {
	return checkHandler(p, "ready\n")
}

func checkHandler(p Checker, okBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		if p != nil {
			if err := p.Check(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(okBody))
	}
}
