package worker

import (
	"fmt"

	"golang.org/x/net/http/httpguts"
)

// NativeBody is the host's payload representation: either a buffered byte
// sequence or a lazy pull source. Exactly one of Data/Pull is meaningful;
// a nil *NativeBody is empty. Pull, when set, returns chunks until io.EOF
// and is not restartable.
type NativeBody struct {
	Data []byte
	Pull func() ([]byte, error)
}

// NativeRequest is the host-native request shape delivered to, and sent
// from, the bridge. Headers are raw ordered (name, value) pairs.
type NativeRequest struct {
	Method  string
	URL     string
	Headers [][2]string
	Body    *NativeBody
}

// NativeResponse is the host-native response shape.
type NativeResponse struct {
	Status     int
	StatusText string
	Headers    [][2]string
	Body       *NativeBody
}

// ToRequest converts a host-native request into the standard model.
// Header order, multiplicity and stored case are preserved exactly; a
// streaming body crosses the boundary lazily, without buffering.
func ToRequest(n *NativeRequest) *Request {
	if n == nil {
		return nil
	}
	return &Request{
		Method:  n.Method,
		URL:     n.URL,
		Headers: headersFromNative(n.Headers),
		Body:    bodyFromNative(n.Body),
	}
}

// FromRequest converts a standard request into the host-native shape.
// Header fields are validated before they cross into the host; an invalid
// name or value fails the conversion rather than corrupting the wire.
func FromRequest(r *Request) (*NativeRequest, error) {
	if r == nil {
		return nil, nil
	}
	hdrs, err := headersToNative(r.Headers)
	if err != nil {
		return nil, err
	}
	body, err := bodyToNative(r.Body)
	if err != nil {
		return nil, err
	}
	return &NativeRequest{
		Method:  r.Method,
		URL:     r.URL,
		Headers: hdrs,
		Body:    body,
	}, nil
}

// ToResponse converts a host-native response into the standard model.
func ToResponse(n *NativeResponse) *Response {
	if n == nil {
		return nil
	}
	return &Response{
		Status:     n.Status,
		StatusText: n.StatusText,
		Headers:    headersFromNative(n.Headers),
		Body:       bodyFromNative(n.Body),
	}
}

// FromResponse converts a standard response into the host-native shape.
func FromResponse(r *Response) (*NativeResponse, error) {
	if r == nil {
		return nil, nil
	}
	hdrs, err := headersToNative(r.Headers)
	if err != nil {
		return nil, err
	}
	body, err := bodyToNative(r.Body)
	if err != nil {
		return nil, err
	}
	return &NativeResponse{
		Status:     r.Status,
		StatusText: r.StatusText,
		Headers:    hdrs,
		Body:       body,
	}, nil
}

func headersFromNative(pairs [][2]string) Headers {
	if len(pairs) == 0 {
		return nil
	}
	h := make(Headers, len(pairs))
	for i, p := range pairs {
		h[i] = Header{Name: p[0], Value: p[1]}
	}
	return h
}

func headersToNative(h Headers) ([][2]string, error) {
	if len(h) == 0 {
		return nil, nil
	}
	pairs := make([][2]string, len(h))
	for i, f := range h {
		if !httpguts.ValidHeaderFieldName(f.Name) {
			return nil, fmt.Errorf("invalid header name %q", f.Name)
		}
		if !httpguts.ValidHeaderFieldValue(f.Value) {
			return nil, fmt.Errorf("invalid value for header %q", f.Name)
		}
		pairs[i] = [2]string{f.Name, f.Value}
	}
	return pairs, nil
}

func bodyFromNative(n *NativeBody) *Body {
	if n == nil {
		return nil
	}
	if n.Pull != nil {
		return NewStreamBody(n.Pull)
	}
	if len(n.Data) == 0 {
		return nil
	}
	return NewBody(n.Data)
}

// bodyToNative hands a buffered body over as bytes and a streaming body as
// its pull source, consuming the stream. Large payloads are never
// materialized here.
func bodyToNative(b *Body) (*NativeBody, error) {
	if b == nil {
		return nil, nil
	}
	if b.IsStream() {
		pull, err := b.Chunks()
		if err != nil {
			return nil, err
		}
		return &NativeBody{Pull: pull}, nil
	}
	data, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &NativeBody{Data: data}, nil
}
