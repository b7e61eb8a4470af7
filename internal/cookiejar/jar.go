package cookiejar

import (
	"maps"
	"net/http"
	"net/url"
	"strings"
)

// Jar is an ordered name -> value mapping of request cookies.
// Names keep the position of their first insertion; Set on an existing
// name replaces the value in place (last write wins). Parsed entries keep
// their wire form and String writes it back untouched until Set replaces it.
type Jar struct {
	order  []string
	values map[string]string
	wire   map[string]string
}

// New returns an empty jar.
func New() *Jar {
	return &Jar{values: make(map[string]string)}
}

// ParseCookieHeader decodes one or more Cookie header values.
// Pairs without a valid token name are dropped; duplicates resolve to the last value.
func ParseCookieHeader(values ...string) *Jar {
	j := New()
	for _, line := range values {
		for _, part := range strings.Split(line, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			name, val, _ := strings.Cut(part, "=")
			name = strings.TrimSpace(name)
			if !isToken(name) {
				continue
			}
			raw := strings.TrimSpace(val)
			j.setWire(name, decodeValue(unquote(raw)), raw)
		}
	}
	return j
}

// FromRequest returns the jar carried by r's Cookie headers. r is not modified.
func FromRequest(r *http.Request) *Jar {
	if r == nil {
		return New()
	}
	return ParseCookieHeader(r.Header.Values("Cookie")...)
}

func (j *Jar) Get(name string) (string, bool) {
	v, ok := j.values[name]
	return v, ok
}

func (j *Jar) Set(name, value string) {
	if j.values == nil {
		j.values = make(map[string]string)
	}
	if _, ok := j.values[name]; !ok {
		j.order = append(j.order, name)
	}
	j.values[name] = value
	delete(j.wire, name)
}

func (j *Jar) setWire(name, value, raw string) {
	j.Set(name, value)
	if j.wire == nil {
		j.wire = make(map[string]string)
	}
	j.wire[name] = raw
}

// Merge copies every entry of other into j, other's values winning.
func (j *Jar) Merge(other *Jar) {
	if other == nil {
		return
	}
	for _, name := range other.order {
		if raw, ok := other.wire[name]; ok {
			j.setWire(name, other.values[name], raw)
			continue
		}
		j.Set(name, other.values[name])
	}
}

func (j *Jar) Clone() *Jar {
	cp := &Jar{
		order:  make([]string, len(j.order)),
		values: make(map[string]string, len(j.values)),
	}
	copy(cp.order, j.order)
	maps.Copy(cp.values, j.values)
	if len(j.wire) > 0 {
		cp.wire = maps.Clone(j.wire)
	}
	return cp
}

func (j *Jar) Len() int { return len(j.order) }

// Names returns cookie names in insertion order.
func (j *Jar) Names() []string {
	out := make([]string, len(j.order))
	copy(out, j.order)
	return out
}

// String renders the jar in Cookie header wire format ("a=1; b=2").
func (j *Jar) String() string {
	var b strings.Builder
	for i, name := range j.order {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name)
		b.WriteByte('=')
		if raw, ok := j.wire[name]; ok {
			b.WriteString(raw)
		} else {
			b.WriteString(encodeValue(j.values[name]))
		}
	}
	return b.String()
}

// encodeValue leaves RFC 6265 cookie-octets untouched and percent-encodes
// anything else (JSON quotes, commas, spaces). '%' is always encoded so
// decodeValue can round-trip.
func encodeValue(v string) string {
	needs := false
	for i := 0; i < len(v); i++ {
		if v[i] == '%' || !isCookieOctet(v[i]) {
			needs = true
			break
		}
	}
	if !needs {
		return v
	}
	var b strings.Builder
	const hex = "0123456789ABCDEF"
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '%' && isCookieOctet(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func unquote(v string) string {
	if len(v) > 1 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

func decodeValue(v string) string {
	if !strings.Contains(v, "%") {
		return v
	}
	out, err := url.PathUnescape(v)
	if err != nil {
		return v
	}
	return out
}

func isCookieOctet(c byte) bool {
	return c == 0x21 ||
		(c >= 0x23 && c <= 0x2B) ||
		(c >= 0x2D && c <= 0x3A) ||
		(c >= 0x3C && c <= 0x5B) ||
		(c >= 0x5D && c <= 0x7E)
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= 0x20 || c >= 0x7f {
			return false
		}
		if strings.IndexByte(`()<>@,;:\"/[]?={}`, c) >= 0 {
			return false
		}
	}
	return true
}
