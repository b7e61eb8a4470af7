package preview

import (
	"errors"
	"net/http"

	"github.com/keithlinneman/draftsite/internal/draftmode"
)

const (
	DefaultActivationParam = "x-draft-mode"
	DefaultAPIKeyHeader    = "x-draft-api-key"
	DefaultBypassCookie    = draftmode.DefaultCookieName
	DefaultMetadataCookie  = "x-draft-data"

	ActivationPath = "/api/draft-mode"
	DisablePath    = "/api/draft-mode/disable"
)

// Names are the wire names shared by the gateway, the endpoint and the resolver.
type Names struct {
	// ActivationParam is the query parameter that carries the secret.
	ActivationParam string
	// APIKeyHeader carries the secret from the gateway to the endpoint.
	APIKeyHeader   string
	BypassCookie   string
	MetadataCookie string
}

func DefaultNames() Names {
	return Names{
		ActivationParam: DefaultActivationParam,
		APIKeyHeader:    DefaultAPIKeyHeader,
		BypassCookie:    DefaultBypassCookie,
		MetadataCookie:  DefaultMetadataCookie,
	}
}

// withDefaults fills empty fields from DefaultNames.
func (n Names) withDefaults() Names {
	d := DefaultNames()
	if n.ActivationParam == "" {
		n.ActivationParam = d.ActivationParam
	}
	if n.APIKeyHeader == "" {
		n.APIKeyHeader = d.APIKeyHeader
	}
	if n.BypassCookie == "" {
		n.BypassCookie = d.BypassCookie
	}
	if n.MetadataCookie == "" {
		n.MetadataCookie = d.MetadataCookie
	}
	return n
}

func (n Names) Validate() error {
	var errs []error
	if !validCookieName(n.BypassCookie) {
		errs = append(errs, errors.New("preview: invalid bypass cookie name "+n.BypassCookie))
	}
	if !validCookieName(n.MetadataCookie) {
		errs = append(errs, errors.New("preview: invalid metadata cookie name "+n.MetadataCookie))
	}
	if n.BypassCookie == n.MetadataCookie {
		errs = append(errs, errors.New("preview: bypass and metadata cookies must differ"))
	}
	if n.ActivationParam == "" {
		errs = append(errs, errors.New("preview: activation param must not be empty"))
	}
	if n.APIKeyHeader == "" {
		errs = append(errs, errors.New("preview: api key header must not be empty"))
	}
	return errors.Join(errs...)
}

func validCookieName(name string) bool {
	if name == "" {
		return false
	}
	c := http.Cookie{Name: name, Value: "x"}
	return c.Valid() == nil
}
