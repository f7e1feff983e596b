package bear

import "strings"

// Group defines a route class: a common prefix and middleware, for example an
// authenticated scope whose routes all require a principal.
type Group struct {
	app        *App
	prefix     string
	middleware []Middleware
}

// Group creates a new route group.
func (a *App) Group(prefix string, middleware ...Middleware) *Group {
	return &Group{app: a, prefix: cleanPrefix(prefix), middleware: middleware}
}

// Group creates a nested group.
func (g *Group) Group(prefix string, middleware ...Middleware) *Group {
	combined := append([]Middleware{}, g.middleware...)
	combined = append(combined, middleware...)
	return &Group{app: g.app, prefix: joinPaths(g.prefix, prefix), middleware: combined}
}

// Use appends middleware to the group.
func (g *Group) Use(middleware ...Middleware) {
	g.middleware = append(g.middleware, middleware...)
}

// GET registers a GET route in the group.
func (g *Group) GET(path string, handler Handler, middleware ...Middleware) {
	g.handle("GET", path, handler, middleware)
}

// POST registers a POST route in the group.
func (g *Group) POST(path string, handler Handler, middleware ...Middleware) {
	g.handle("POST", path, handler, middleware)
}

// PUT registers a PUT route in the group.
func (g *Group) PUT(path string, handler Handler, middleware ...Middleware) {
	g.handle("PUT", path, handler, middleware)
}

// DELETE registers a DELETE route in the group.
func (g *Group) DELETE(path string, handler Handler, middleware ...Middleware) {
	g.handle("DELETE", path, handler, middleware)
}

// Handle registers a route in the group for an arbitrary method.
func (g *Group) Handle(method, path string, handler Handler, middleware ...Middleware) {
	g.handle(method, path, handler, middleware)
}

func (g *Group) handle(method, path string, handler Handler, middleware []Middleware) {
	combined := append([]Middleware{}, g.middleware...)
	combined = append(combined, middleware...)
	g.app.handle(method, joinPaths(g.prefix, path), handler, combined...)
}

func joinPaths(base, path string) string {
	if base == "" {
		return cleanPrefix(path)
	}
	if path == "" || path == "/" {
		return cleanPrefix(base)
	}

	base = cleanPrefix(base)
	path = cleanPrefix(path)

	if base == "/" {
		return path
	}
	return strings.TrimRight(base, "/") + path
}

func cleanPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if len(prefix) > 1 {
		prefix = strings.TrimRight(prefix, "/")
	}
	return prefix
}
