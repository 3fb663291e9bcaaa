package worker

import "strings"

// Request is the protocol-neutral representation of an HTTP request.
// The URL is kept as the raw string the host delivered: path, query and
// percent-encoding round-trip byte-for-byte, and duplicate query
// parameters are never merged or dropped.
type Request struct {
	Method  string
	URL     string
	Headers Headers
	Body    *Body
}

// NewRequest builds a request with an empty body.
func NewRequest(method, url string) *Request {
	return &Request{Method: method, URL: url}
}

// WithHeader appends a header field and returns the request.
func (r *Request) WithHeader(name, value string) *Request {
	r.Headers.Add(name, value)
	return r
}

// WithBody sets the body and returns the request.
func (r *Request) WithBody(b *Body) *Request {
	r.Body = b
	return r
}

// Path returns the raw path portion of the URL: no decoding, no
// normalization. Scheme and authority are stripped when present.
func (r *Request) Path() string {
	u := r.URL
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
		if j := strings.IndexByte(u, '/'); j >= 0 {
			u = u[j:]
		} else {
			return "/"
		}
	}
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if u == "" {
		return "/"
	}
	return u
}

// Query returns the raw query string without the leading '?', or "".
func (r *Request) Query() string {
	u := r.URL
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[i+1:]
	}
	return ""
}
