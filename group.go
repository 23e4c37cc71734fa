package forge

// Group is a child Router that prepends prefix to every template
// registered through it; groups compose, so nested prefixes
// concatenate.
type Group struct {
	prefix string
	router *Router
}

// Group returns a new top-level Group bound to r.
func (r *Router) Group(prefix string) *Group {
	return &Group{prefix: prefix, router: r}
}

// Group returns a nested Group whose prefix is g's prefix followed by
// prefix.
func (g *Group) Group(prefix string) *Group {
	return &Group{prefix: g.prefix + prefix, router: g.router}
}

// Register registers template (prefixed by the group's accumulated
// prefix) for method.
func (g *Group) Register(method Method, template string, handler Handler) error {
	return g.router.Register(method, g.prefix+template, handler)
}

// GET, POST, PUT, DELETE, PATCH and OPTIONS are convenience wrappers
// over Register for the corresponding method, mirrored on Router too.
func (g *Group) GET(template string, handler Handler) error {
	return g.Register(GET, template, handler)
}

func (g *Group) POST(template string, handler Handler) error {
	return g.Register(POST, template, handler)
}

func (g *Group) PUT(template string, handler Handler) error {
	return g.Register(PUT, template, handler)
}

func (g *Group) DELETE(template string, handler Handler) error {
	return g.Register(DELETE, template, handler)
}

func (g *Group) PATCH(template string, handler Handler) error {
	return g.Register(PATCH, template, handler)
}

func (g *Group) OPTIONS(template string, handler Handler) error {
	return g.Register(OPTIONS, template, handler)
}

// GET, POST, PUT, DELETE, PATCH and OPTIONS on Router register
// directly with no prefix.

func (r *Router) GET(template string, handler Handler) error {
	return r.Register(GET, template, handler)
}

func (r *Router) POST(template string, handler Handler) error {
	return r.Register(POST, template, handler)
}

func (r *Router) PUT(template string, handler Handler) error {
	return r.Register(PUT, template, handler)
}

func (r *Router) DELETE(template string, handler Handler) error {
	return r.Register(DELETE, template, handler)
}

func (r *Router) PATCH(template string, handler Handler) error {
	return r.Register(PATCH, template, handler)
}

func (r *Router) OPTIONS(template string, handler Handler) error {
	return r.Register(OPTIONS, template, handler)
}
