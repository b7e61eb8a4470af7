package preview

import "errors"

// Activation failures. None of them reach the visitor; the gateway logs,
// counts and falls back to the unmodified request.
var (
	// ErrActivationNetwork covers transport errors and timeouts on the internal call.
	ErrActivationNetwork = errors.New("preview activation request failed")
	// ErrMissingSessionCookie means the endpoint answered but issued no session cookie.
	ErrMissingSessionCookie = errors.New("preview activation returned no session cookie")
	// ErrMalformedSetCookie means the response carried Set-Cookie headers that could not be parsed.
	ErrMalformedSetCookie = errors.New("preview activation returned malformed Set-Cookie")
)

// Activation outcomes, used as the metric label.
const (
	OutcomeActivated          = "activated"
	OutcomeNetworkError       = "network_error"
	OutcomeNoSessionCookie    = "no_session_cookie"
	OutcomeMalformedSetCookie = "malformed_set_cookie"
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeActivated
	case errors.Is(err, ErrActivationNetwork):
		return OutcomeNetworkError
	case errors.Is(err, ErrMalformedSetCookie):
		return OutcomeMalformedSetCookie
	default:
		return OutcomeNoSessionCookie
	}
}
