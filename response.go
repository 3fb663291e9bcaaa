package worker

import "net/http"

// Response is the protocol-neutral representation of an HTTP response.
// StatusText is carried verbatim so a host-supplied reason phrase
// round-trips; when empty, conversions substitute nothing.
type Response struct {
	Status     int
	StatusText string
	Headers    Headers
	Body       *Body
}

// NewResponse builds a response with an empty body.
func NewResponse(status int) *Response {
	return &Response{Status: status}
}

// OK builds a 200 response with a text body.
func OK(body string) *Response {
	return &Response{Status: http.StatusOK, Body: NewTextBody(body)}
}

// JSONResponse builds a 200 response with a JSON body and content type.
func JSONResponse(v any) (*Response, error) {
	body, err := NewJSONBody(v)
	if err != nil {
		return nil, err
	}
	r := &Response{Status: http.StatusOK, Body: body}
	r.Headers.Set("Content-Type", "application/json")
	return r, nil
}

// ErrorResponse builds a plain-text response with the given status.
func ErrorResponse(status int, msg string) *Response {
	return &Response{Status: status, Body: NewTextBody(msg)}
}

// WithHeader appends a header field and returns the response.
func (r *Response) WithHeader(name, value string) *Response {
	r.Headers.Add(name, value)
	return r
}

// WithBody sets the body and returns the response.
func (r *Response) WithBody(b *Body) *Response {
	r.Body = b
	return r
}
