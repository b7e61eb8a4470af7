package cookiejar

import (
	"net/http"
	"strings"
)

// Pair is a bare cookie name/value without Set-Cookie attributes.
type Pair struct {
	Name  string
	Value string
}

// ParseSetCookie parses Set-Cookie header values. Empty and malformed lines
// are skipped, so a missing or garbage header yields an empty slice.
func ParseSetCookie(values ...string) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		c, err := http.ParseSetCookie(v)
		if err != nil || c.Name == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FromResponse parses every Set-Cookie header on resp.
func FromResponse(resp *http.Response) []*http.Cookie {
	if resp == nil {
		return nil
	}
	return ParseSetCookie(resp.Header.Values("Set-Cookie")...)
}

// Find returns the last cookie named name, matching browser overwrite order.
func Find(cookies []*http.Cookie, name string) (*http.Cookie, bool) {
	for i := len(cookies) - 1; i >= 0; i-- {
		if cookies[i] != nil && cookies[i].Name == name {
			return cookies[i], true
		}
	}
	return nil, false
}

// ProjectInto returns a clone of r whose Cookie header is r's cookies plus
// cookies plus extra, applied in that order with last write winning. Pairs of
// r that are not overwritten are copied byte for byte, duplicates included;
// an overwritten name keeps the position of its first occurrence. r is not
// modified.
func ProjectInto(r *http.Request, cookies []*http.Cookie, extra ...Pair) *http.Request {
	set := New()
	for _, c := range cookies {
		if c != nil && isToken(c.Name) {
			set.Set(c.Name, c.Value)
		}
	}
	for _, p := range extra {
		if isToken(p.Name) {
			set.Set(p.Name, p.Value)
		}
	}

	var pairs []string
	written := make(map[string]bool, set.Len())
	for _, line := range r.Header.Values("Cookie") {
		for part := range strings.SplitSeq(line, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			name, _, _ := strings.Cut(part, "=")
			name = strings.TrimSpace(name)
			v, replaced := set.Get(name)
			switch {
			case !replaced:
				pairs = append(pairs, part)
			case !written[name]:
				pairs = append(pairs, name+"="+encodeValue(v))
				written[name] = true
			}
		}
	}
	for _, name := range set.order {
		if !written[name] {
			pairs = append(pairs, name+"="+encodeValue(set.values[name]))
		}
	}

	out := r.Clone(r.Context())
	if len(pairs) == 0 {
		out.Header.Del("Cookie")
	} else {
		out.Header.Set("Cookie", strings.Join(pairs, "; "))
	}
	return out
}

// WithCookie returns a clone of r carrying name=value in its cookie jar.
func WithCookie(r *http.Request, name, value string) *http.Request {
	return ProjectInto(r, nil, Pair{Name: name, Value: value})
}
