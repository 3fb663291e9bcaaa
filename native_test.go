package worker

import (
	"io"
	"reflect"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	in := &NativeRequest{
		Method: "POST",
		URL:    "https://example.com/a%2Fb?x=1&x=2&y=%20",
		Headers: [][2]string{
			{"Set-Cookie", "a=1"},
			{"X-Custom", "v"},
			{"set-cookie", "b=2"},
		},
		Body: &NativeBody{Data: []byte("payload")},
	}

	req := ToRequest(in)
	out, err := FromRequest(req)
	if err != nil {
		t.Fatalf("FromRequest: %v", err)
	}

	if out.Method != in.Method || out.URL != in.URL {
		t.Fatalf("method/url = %q %q", out.Method, out.URL)
	}
	if !reflect.DeepEqual(out.Headers, in.Headers) {
		t.Fatalf("headers = %v, want %v", out.Headers, in.Headers)
	}
	if string(out.Body.Data) != "payload" {
		t.Fatalf("body = %q", out.Body.Data)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	in := &NativeResponse{
		Status:     418,
		StatusText: "I'm a teapot",
		Headers:    [][2]string{{"Content-Type", "text/plain"}},
		Body:       &NativeBody{Data: []byte("short and stout")},
	}
	resp := ToResponse(in)
	if resp.Status != 418 || resp.StatusText != "I'm a teapot" {
		t.Fatalf("status = %d %q", resp.Status, resp.StatusText)
	}
	out, err := FromResponse(resp)
	if err != nil {
		t.Fatalf("FromResponse: %v", err)
	}
	if out.Status != in.Status || out.StatusText != in.StatusText {
		t.Fatalf("status round-trip = %d %q", out.Status, out.StatusText)
	}
	if !reflect.DeepEqual(out.Headers, in.Headers) {
		t.Fatalf("headers = %v", out.Headers)
	}
}

func TestStreamingBodyPassesThroughUnbuffered(t *testing.T) {
	calls := 0
	in := &NativeRequest{
		Method: "POST",
		URL:    "/upload",
		Body: &NativeBody{Pull: func() ([]byte, error) {
			calls++
			if calls > 2 {
				return nil, io.EOF
			}
			return []byte("chunk"), nil
		}},
	}

	req := ToRequest(in)
	if !req.Body.IsStream() {
		t.Fatal("stream arrived buffered")
	}
	out, err := FromRequest(req)
	if err != nil {
		t.Fatalf("FromRequest: %v", err)
	}
	if calls != 0 {
		t.Fatalf("conversion pulled %d chunks", calls)
	}
	if out.Body.Pull == nil {
		t.Fatal("stream lost its pull source")
	}

	var n int
	for {
		c, err := out.Body.Pull()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("pull: %v", err)
		}
		n += len(c)
	}
	if n != 10 {
		t.Fatalf("drained %d bytes, want 10", n)
	}
}

func TestFromRequestRejectsInvalidHeader(t *testing.T) {
	req := NewRequest("GET", "/")
	req.Headers.Add("Bad Name", "v")
	if _, err := FromRequest(req); err == nil {
		t.Fatal("invalid header name accepted")
	}

	req2 := NewRequest("GET", "/")
	req2.Headers.Add("X-A", "bad\nvalue")
	if _, err := FromRequest(req2); err == nil {
		t.Fatal("invalid header value accepted")
	}
}

func TestNilConversions(t *testing.T) {
	if ToRequest(nil) != nil {
		t.Fatal("ToRequest(nil) != nil")
	}
	if ToResponse(nil) != nil {
		t.Fatal("ToResponse(nil) != nil")
	}
	if out, err := FromRequest(nil); out != nil || err != nil {
		t.Fatalf("FromRequest(nil) = (%v, %v)", out, err)
	}
	if out, err := FromResponse(nil); out != nil || err != nil {
		t.Fatalf("FromResponse(nil) = (%v, %v)", out, err)
	}
}
