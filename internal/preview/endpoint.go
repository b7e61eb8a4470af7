package preview

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/draftsite/internal/draftmode"
	"github.com/keithlinneman/draftsite/internal/httpmw"
	"github.com/keithlinneman/draftsite/internal/log"
	"github.com/keithlinneman/draftsite/internal/xerrors"
)

type EndpointOptions struct {
	Secret  Secret
	Names   Names
	Runtime *draftmode.Runtime
	Logger  log.Logger
}

// ActivationEndpoint opens a bypass session when called with the secret in
// the api key header. It always answers 200 with an empty body; only the
// presence of the session cookie differs between a match and a mismatch.
type ActivationEndpoint struct {
	secret  Secret
	names   Names
	runtime *draftmode.Runtime
	logger  log.Logger
}

func NewActivationEndpoint(opts EndpointOptions) (*ActivationEndpoint, error) {
	if opts.Runtime == nil {
		return nil, xerrors.New("activation endpoint requires a draft mode runtime")
	}
	names := opts.Names.withDefaults()
	if err := names.Validate(); err != nil {
		return nil, err
	}
	if names.BypassCookie != opts.Runtime.CookieName() {
		return nil, xerrors.Newf("bypass cookie %q does not match draft mode cookie %q",
			names.BypassCookie, opts.Runtime.CookieName())
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &ActivationEndpoint{
		secret:  opts.Secret,
		names:   names,
		runtime: opts.Runtime,
		logger:  logger,
	}, nil
}

// RegisterRoutes attaches the activation and disable routes.
func (e *ActivationEndpoint) RegisterRoutes(r chi.Router) {
	r = r.With(httpmw.Scope("draft-mode"))
	r.Method(http.MethodGet, ActivationPath, e)
	r.Method(http.MethodGet, DisablePath, http.HandlerFunc(e.ServeDisable))
}

func (e *ActivationEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	if e.secret.Matches(r.Header.Get(e.names.APIKeyHeader)) {
		if err := e.runtime.Enable(w, r); err != nil {
			// same shape as a mismatch
			log.FromContextOr(r.Context(), e.logger).Error(r.Context(), err, "enable draft mode")
		}
	}

	w.WriteHeader(http.StatusOK)
}

// ServeDisable ends the session by expiring both preview cookies.
func (e *ActivationEndpoint) ServeDisable(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	e.runtime.Disable(w)
	http.SetCookie(w, &http.Cookie{
		Name:    e.names.MetadataCookie,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
	w.WriteHeader(http.StatusOK)
}
