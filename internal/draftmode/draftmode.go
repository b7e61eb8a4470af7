// Package draftmode is the hosting runtime's bypass session.
//
// Enabling draft mode mints an opaque, self-verifying token and sets it as a
// cookie. Requests that carry a valid token skip cached rendering and may be
// served unpublished content. Nothing is stored server side: the token is
// nonce|expiry signed with HMAC-SHA256, so any instance sharing the key can
// verify it.
package draftmode

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/keithlinneman/draftsite/internal/cookiejar"
	"github.com/keithlinneman/draftsite/internal/xerrors"
)

const (
	// DefaultCookieName matches the bypass cookie name used by common SSR hosts.
	DefaultCookieName = "__prerender_bypass"
	DefaultTTL        = time.Hour

	nonceLen   = 16
	payloadLen = nonceLen + 8
)

var (
	ErrMalformedToken = errors.New("draftmode: malformed token")
	ErrBadSignature   = errors.New("draftmode: bad signature")
	ErrExpired        = errors.New("draftmode: token expired")
)

type Options struct {
	// Key signs tokens. Empty generates a random per-process key, which means
	// tokens do not survive restarts and are not valid on other instances.
	Key        []byte
	CookieName string
	TTL        time.Duration
	// Secure marks the cookie Secure. Leave false only for plain-http dev setups.
	Secure bool
	Now    func() time.Time
}

type Runtime struct {
	key        []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

func New(opts Options) (*Runtime, error) {
	key := opts.Key
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, xerrors.Wrap(err, "generate draft session key")
		}
	} else {
		// normalize arbitrary-length config material to a fixed-size HMAC key
		sum := sha256.Sum256(key)
		key = sum[:]
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runtime{
		key:        key,
		cookieName: opts.CookieName,
		ttl:        opts.TTL,
		secure:     opts.Secure,
		now:        opts.Now,
	}, nil
}

func (rt *Runtime) CookieName() string { return rt.cookieName }

// Mint returns a fresh token valid for the configured TTL.
func (rt *Runtime) Mint() (string, error) {
	payload := make([]byte, payloadLen)
	if _, err := rand.Read(payload[:nonceLen]); err != nil {
		return "", xerrors.Wrap(err, "generate draft session nonce")
	}
	exp := rt.now().Add(rt.ttl).Unix()
	binary.BigEndian.PutUint64(payload[nonceLen:], uint64(exp))

	enc := base64.RawURLEncoding
	return enc.EncodeToString(payload) + "." + enc.EncodeToString(rt.sign(payload)), nil
}

// Verify checks a token's signature and expiry.
func (rt *Runtime) Verify(token string) error {
	p, s, ok := strings.Cut(token, ".")
	if !ok {
		return ErrMalformedToken
	}
	enc := base64.RawURLEncoding
	payload, err := enc.DecodeString(p)
	if err != nil || len(payload) != payloadLen {
		return ErrMalformedToken
	}
	sig, err := enc.DecodeString(s)
	if err != nil {
		return ErrMalformedToken
	}
	if !hmac.Equal(sig, rt.sign(payload)) {
		return ErrBadSignature
	}
	exp := int64(binary.BigEndian.Uint64(payload[nonceLen:]))
	if rt.now().Unix() >= exp {
		return ErrExpired
	}
	return nil
}

// Enable mints a token and attaches it to the response as the bypass cookie.
func (rt *Runtime) Enable(w http.ResponseWriter, r *http.Request) error {
	token, err := rt.Mint()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     rt.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   rt.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Disable expires the bypass cookie on the client.
func (rt *Runtime) Disable(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     rt.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   rt.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Enabled reports whether r carries a valid bypass token.
func (rt *Runtime) Enabled(r *http.Request) bool {
	token, ok := cookiejar.FromRequest(r).Get(rt.cookieName)
	if !ok || token == "" {
		return false
	}
	return rt.Verify(token) == nil
}

func (rt *Runtime) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, rt.key)
	mac.Write(payload)
	return mac.Sum(nil)
}
