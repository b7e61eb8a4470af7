// Package cookiejar projects cookies issued in one response into another
// request so they take effect on the next hop.
//
// [Jar] is an explicit ordered cookie mapping with Cookie header
// (de)serialization. [ParseSetCookie] tolerantly decodes Set-Cookie headers and
// [ProjectInto] builds a new request from an existing one plus extra cookies,
// leaving the original untouched.
//
// Cookie values that are not valid RFC 6265 cookie-octets (for example JSON)
// are percent-encoded on the wire and decoded by the jar, so readers must go
// through [FromRequest] rather than (*http.Request).Cookie.
package cookiejar
