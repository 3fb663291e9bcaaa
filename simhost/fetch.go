package simhost

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/edgebind/worker"
)

// forbiddenFetchHeaders is the blocklist of headers workers cannot set on
// outbound requests. These are controlled by the HTTP transport or could be
// used for header smuggling.
var forbiddenFetchHeaders = map[string]bool{
	"host":                true,
	"transfer-encoding":   true,
	"connection":          true,
	"keep-alive":          true,
	"upgrade":             true,
	"proxy-authorization": true,
	"proxy-connection":    true,
	"te":                  true,
	"trailer":             true,
	"x-forwarded-for":     true,
	"x-forwarded-host":    true,
	"x-forwarded-proto":   true,
	"x-real-ip":           true,
}

// netFetch performs outbound exchanges over net/http. It implements
// worker.FetchBackend; each exchange runs in its own goroutine and reports
// through the completion callback.
type netFetch struct {
	client *http.Client
}

func newNetFetch(client *http.Client) *netFetch {
	if client == nil {
		client = http.DefaultClient
	}
	return &netFetch{client: client}
}

func (f *netFetch) Fetch(req *worker.NativeRequest, done func(*worker.NativeResponse, error)) {
	go func() {
		resp, err := f.roundTrip(req)
		done(resp, err)
	}()
}

func (f *netFetch) roundTrip(nr *worker.NativeRequest) (*worker.NativeResponse, error) {
	var body io.Reader
	if nr.Body != nil {
		if nr.Body.Pull != nil {
			body = &pullReader{pull: nr.Body.Pull}
		} else if len(nr.Body.Data) > 0 {
			body = bytes.NewReader(nr.Body.Data)
		}
	}
	req, err := http.NewRequest(nr.Method, nr.URL, body)
	if err != nil {
		return nil, fmt.Errorf("fetch: building request: %w", err)
	}
	for _, h := range nr.Headers {
		if forbiddenFetchHeaders[strings.ToLower(h[0])] {
			continue
		}
		req.Header.Add(h[0], h[1])
	}
	// Decoded below, so advertise what we handle.
	req.Header.Set("Accept-Encoding", "br, gzip")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Setting Accept-Encoding above turns off the transport's transparent
	// gzip handling, so both encodings are decoded here.
	reader := io.Reader(resp.Body)
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("fetch: decoding gzip body: %w", err)
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("fetch: reading body: %w", err)
	}

	out := &worker.NativeResponse{
		Status:     resp.StatusCode,
		StatusText: strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprintf("%d", resp.StatusCode))),
	}
	for name, values := range resp.Header {
		if strings.EqualFold(name, "Content-Encoding") || strings.EqualFold(name, "Content-Length") {
			continue
		}
		for _, v := range values {
			out.Headers = append(out.Headers, [2]string{name, v})
		}
	}
	if len(data) > 0 {
		out.Body = &worker.NativeBody{Data: data}
	}
	return out, nil
}

// pullReader adapts a native pull source to io.Reader for the transport.
type pullReader struct {
	pull func() ([]byte, error)
	rest []byte
	err  error
}

func (r *pullReader) Read(p []byte) (int, error) {
	for len(r.rest) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		chunk, err := r.pull()
		r.rest, r.err = chunk, err
	}
	n := copy(p, r.rest)
	r.rest = r.rest[n:]
	return n, nil
}
