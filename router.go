package worker

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// RouteContext carries the matched route's captured parameters plus the
// invocation's environment and execution context.
type RouteContext struct {
	Env    *Env
	Ctx    *Ctx
	params map[string]string
}

// Param returns the captured value for a {name} segment, or "".
func (rc *RouteContext) Param(name string) string {
	return rc.params[name]
}

// RouteHandler handles one matched request.
type RouteHandler func(ctx context.Context, req *Request, rc *RouteContext) (*Response, error)

// Router matches request paths against registered patterns. Patterns are
// literal segments, {name} parameter segments capturing exactly one
// segment, and a trailing * capturing the rest of the path. A literal
// segment beats a parameter, which beats a wildcard. Matching is on the
// raw path; no decoding or normalization is applied.
type Router struct {
	root *routeNode
}

type routeNode struct {
	static    map[string]*routeNode
	param     *routeNode
	paramName string
	wildcard  *routeNode
	handlers  map[string]RouteHandler // keyed by method, "" = any
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{root: &routeNode{}}
}

// Get registers a handler for GET requests on pattern.
func (r *Router) Get(pattern string, h RouteHandler) { r.register(http.MethodGet, pattern, h) }

// Post registers a handler for POST requests on pattern.
func (r *Router) Post(pattern string, h RouteHandler) { r.register(http.MethodPost, pattern, h) }

// Put registers a handler for PUT requests on pattern.
func (r *Router) Put(pattern string, h RouteHandler) { r.register(http.MethodPut, pattern, h) }

// Delete registers a handler for DELETE requests on pattern.
func (r *Router) Delete(pattern string, h RouteHandler) { r.register(http.MethodDelete, pattern, h) }

// Patch registers a handler for PATCH requests on pattern.
func (r *Router) Patch(pattern string, h RouteHandler) { r.register(http.MethodPatch, pattern, h) }

// Head registers a handler for HEAD requests on pattern.
func (r *Router) Head(pattern string, h RouteHandler) { r.register(http.MethodHead, pattern, h) }

// Options registers a handler for OPTIONS requests on pattern.
func (r *Router) Options(pattern string, h RouteHandler) { r.register(http.MethodOptions, pattern, h) }

// All registers a handler for every method on pattern. Method-specific
// registrations take precedence.
func (r *Router) All(pattern string, h RouteHandler) { r.register("", pattern, h) }

func (r *Router) register(method, pattern string, h RouteHandler) {
	if !strings.HasPrefix(pattern, "/") {
		panic(fmt.Sprintf("route pattern %q must start with /", pattern))
	}
	node := r.root
	segs := splitPath(pattern)
	for i, seg := range segs {
		switch {
		case seg == "*":
			if i != len(segs)-1 {
				panic(fmt.Sprintf("route pattern %q: * must be the final segment", pattern))
			}
			if node.wildcard == nil {
				node.wildcard = &routeNode{}
			}
			node = node.wildcard
		case strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"):
			name := seg[1 : len(seg)-1]
			if name == "" {
				panic(fmt.Sprintf("route pattern %q: empty parameter name", pattern))
			}
			if node.param == nil {
				node.param = &routeNode{}
				node.paramName = name
			} else if node.paramName != name {
				panic(fmt.Sprintf("route pattern %q: conflicting parameter {%s} vs {%s}", pattern, name, node.paramName))
			}
			node = node.param
		default:
			if node.static == nil {
				node.static = make(map[string]*routeNode)
			}
			child := node.static[seg]
			if child == nil {
				child = &routeNode{}
				node.static[seg] = child
			}
			node = child
		}
	}
	if node.handlers == nil {
		node.handlers = make(map[string]RouteHandler)
	}
	if _, dup := node.handlers[method]; dup {
		panic(fmt.Sprintf("route %s %q registered twice", method, pattern))
	}
	node.handlers[method] = h
}

// Match resolves method and raw path to a handler and its captured
// parameters. No match yields ErrRouteNotFound.
func (r *Router) Match(method, path string) (RouteHandler, map[string]string, error) {
	params := make(map[string]string)
	node := r.matchNode(r.root, splitPath(path), params)
	if node == nil || node.handlers == nil {
		return nil, nil, ErrRouteNotFound
	}
	h, ok := node.handlers[method]
	if !ok {
		h, ok = node.handlers[""]
	}
	if !ok {
		return nil, nil, ErrRouteNotFound
	}
	return h, params, nil
}

func (r *Router) matchNode(node *routeNode, segs []string, params map[string]string) *routeNode {
	if len(segs) == 0 {
		if node.handlers != nil {
			return node
		}
		// A trailing wildcard also matches the empty remainder.
		if node.wildcard != nil && node.wildcard.handlers != nil {
			params["*"] = ""
			return node.wildcard
		}
		return nil
	}
	seg, rest := segs[0], segs[1:]
	if child := node.static[seg]; child != nil {
		if m := r.matchNode(child, rest, params); m != nil {
			return m
		}
	}
	if node.param != nil {
		params[node.paramName] = seg
		if m := r.matchNode(node.param, rest, params); m != nil {
			return m
		}
		delete(params, node.paramName)
	}
	if node.wildcard != nil && node.wildcard.handlers != nil {
		params["*"] = strings.Join(segs, "/")
		return node.wildcard
	}
	return nil
}

// Handler adapts the router into a worker fetch handler. An unmatched
// request surfaces ErrRouteNotFound to the dispatcher.
func (r *Router) Handler() FetchHandler {
	return func(ctx context.Context, req *Request, env *Env, wctx *Ctx) (*Response, error) {
		h, params, err := r.Match(req.Method, req.Path())
		if err != nil {
			return nil, err
		}
		return h(ctx, req, &RouteContext{Env: env, Ctx: wctx, params: params})
	}
}

// splitPath splits a raw path into segments. "/" has no segments.
func splitPath(p string) []string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
