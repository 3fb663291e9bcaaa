package worker

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func echoParam(name string) RouteHandler {
	return func(_ context.Context, _ *Request, rc *RouteContext) (*Response, error) {
		return OK(rc.Param(name)), nil
	}
}

func constant(body string) RouteHandler {
	return func(context.Context, *Request, *RouteContext) (*Response, error) {
		return OK(body), nil
	}
}

func matchBody(t *testing.T, r *Router, method, path string) string {
	t.Helper()
	h, params, err := r.Match(method, path)
	if err != nil {
		t.Fatalf("Match(%s %s): %v", method, path, err)
	}
	resp, err := h(context.Background(), NewRequest(method, path), &RouteContext{params: params})
	if err != nil {
		t.Fatalf("handler(%s %s): %v", method, path, err)
	}
	body, err := resp.Body.Text()
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	return body
}

func TestRouterStaticAndParam(t *testing.T) {
	r := NewRouter()
	r.Get("/durable", constant("durable"))
	r.Get("/kv", constant("kv"))
	r.Get("/secret/{name}", echoParam("name"))

	if got := matchBody(t, r, "GET", "/durable"); got != "durable" {
		t.Fatalf("/durable = %q", got)
	}
	if got := matchBody(t, r, "GET", "/kv"); got != "kv" {
		t.Fatalf("/kv = %q", got)
	}
	if got := matchBody(t, r, "GET", "/secret/cf-token"); got != "cf-token" {
		t.Fatalf("/secret/cf-token = %q", got)
	}
}

func TestRouterNotFound(t *testing.T) {
	r := NewRouter()
	r.Get("/only", constant("x"))

	for _, path := range []string{"/missing", "/only/deeper", "/"} {
		if _, _, err := r.Match("GET", path); !errors.Is(err, ErrRouteNotFound) {
			t.Errorf("Match(%q) err = %v, want ErrRouteNotFound", path, err)
		}
	}
	// Registered path, unregistered method.
	if _, _, err := r.Match("POST", "/only"); !errors.Is(err, ErrRouteNotFound) {
		t.Errorf("method miss err should be ErrRouteNotFound")
	}
}

func TestRouterStaticBeatsParam(t *testing.T) {
	r := NewRouter()
	r.Get("/user/{id}", echoParam("id"))
	r.Get("/user/me", constant("me"))

	if got := matchBody(t, r, "GET", "/user/me"); got != "me" {
		t.Fatalf("/user/me = %q", got)
	}
	if got := matchBody(t, r, "GET", "/user/42"); got != "42" {
		t.Fatalf("/user/42 = %q", got)
	}
}

func TestRouterParamBacktracksToWildcard(t *testing.T) {
	r := NewRouter()
	r.Get("/files/{name}/meta", echoParam("name"))
	r.Get("/files/*", echoParam("*"))

	if got := matchBody(t, r, "GET", "/files/a.txt/meta"); got != "a.txt" {
		t.Fatalf("param route = %q", got)
	}
	if got := matchBody(t, r, "GET", "/files/a/b/c"); got != "a/b/c" {
		t.Fatalf("wildcard route = %q", got)
	}
}

func TestRouterAllFallsBack(t *testing.T) {
	r := NewRouter()
	r.All("/api", constant("any"))
	r.Post("/api", constant("post"))

	if got := matchBody(t, r, "POST", "/api"); got != "post" {
		t.Fatalf("POST = %q", got)
	}
	if got := matchBody(t, r, "DELETE", "/api"); got != "any" {
		t.Fatalf("DELETE = %q", got)
	}
}

func TestRouterMatchesRawSegments(t *testing.T) {
	r := NewRouter()
	r.Get("/secret/{name}", echoParam("name"))

	// Encoded segment is captured verbatim, never decoded.
	if got := matchBody(t, r, "GET", "/secret/a%2Fb"); got != "a%2Fb" {
		t.Fatalf("encoded segment = %q", got)
	}
}

func TestRouterHandler(t *testing.T) {
	r := NewRouter()
	r.Get("/hello/{who}", echoParam("who"))
	h := r.Handler()

	resp, err := h(context.Background(), NewRequest(http.MethodGet, "https://x.dev/hello/world?q=1"), nil, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if body, _ := resp.Body.Text(); body != "world" {
		t.Fatalf("body = %q", body)
	}

	_, err = h(context.Background(), NewRequest(http.MethodGet, "https://x.dev/nope"), nil, nil)
	if !errors.Is(err, ErrRouteNotFound) {
		t.Fatalf("unmatched err = %v", err)
	}
}

func TestRouterDuplicateRegistrationPanics(t *testing.T) {
	r := NewRouter()
	r.Get("/x", constant("a"))
	defer func() {
		if recover() == nil {
			t.Fatal("duplicate registration did not panic")
		}
	}()
	r.Get("/x", constant("b"))
}
