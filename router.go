package forge

import (
	"fmt"
	"regexp"
	"strings"
)

// Handler serves one matched request.
type Handler func(*Context) error

// route is a compiled registration: method, matcher, the ordered
// parameter names its template captures, and the handler to invoke.
type route struct {
	method     Method
	template   string
	matcher    *regexp.Regexp
	paramNames []string
	handler    Handler
}

// Router compiles path templates to matchers and dispatches by
// (method, path). Routes are stored in a flat, insertion-ordered
// list — first registered wins on ambiguous patterns — matched by an
// explicit compiled regex per route rather than a trie.
type Router struct {
	routes []*route
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{}
}

// Register compiles template for method and appends it to the route
// table. It returns an error instead of panicking if compilation
// genuinely fails: registration surfaces an error synchronously and
// never crashes the server at runtime.
func (r *Router) Register(method Method, template string, handler Handler) error {
	matcher, paramNames, err := compileTemplate(template)
	if err != nil {
		return fmt.Errorf("forge: compiling route template %q: %w", template, err)
	}

	for _, existing := range r.routes {
		if existing.method == method && stripParamNames(existing.template) == stripParamNames(template) {
			logDebug("route %s %s may shadow already-registered %s %s; first registration wins",
				methodNameOrUnknown(method), template, methodNameOrUnknown(existing.method), existing.template)
			break
		}
	}

	r.routes = append(r.routes, &route{
		method:     method,
		template:   template,
		matcher:    matcher,
		paramNames: paramNames,
		handler:    handler,
	})
	return nil
}

func methodNameOrUnknown(m Method) string {
	if s := m.String(); s != "" {
		return s
	}
	return "UNKNOWN"
}

// stripParamNames collapses every ":name" segment to ":" so two
// templates that differ only in their parameter names compare equal,
// for the ambiguous-route warning in Register.
func stripParamNames(template string) string {
	segments := strings.Split(template, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") {
			segments[i] = ":"
		}
	}
	return strings.Join(segments, "/")
}

// Match finds the first route (in registration order) whose method
// matches and whose compiled pattern matches path. On a match it
// extracts parameters left-to-right into req.PathParams and invokes
// the handler exactly once, returning true. It returns false and
// invokes nothing on a miss.
//
// If path matches some route's pattern under a different method,
// matched is false but methodMismatch is true, so the caller can
// answer 405 instead of 404.
func (r *Router) Match(req *Request, c *Context) (matched bool, methodMismatch bool) {
	var pathMatchedOtherMethod bool

	for _, rt := range r.routes {
		m := rt.matcher.FindStringSubmatch(req.Path)
		if m == nil {
			continue
		}
		if rt.method != req.Method {
			pathMatchedOtherMethod = true
			continue
		}

		for i, name := range rt.paramNames {
			req.PathParams[name] = m[i+1]
		}

		if err := rt.handler(c); err != nil {
			writeHandlerError(c, err)
		}
		return true, false
	}

	return false, pathMatchedOtherMethod
}

// compileTemplate turns a route template into an anchored regular
// expression and the ordered list of parameter names it captures:
//
//   - literal segments separated by "/"
//   - a segment beginning with ":" captures "[^/]+"
//   - a trailing "*" (or "/*") captures the remaining path (incl.
//     slashes) as one catch-all parameter
//
// Regex metacharacters in literal segments are escaped.
func compileTemplate(template string) (*regexp.Regexp, []string, error) {
	if template == "" || template[0] != '/' {
		return nil, nil, fmt.Errorf("template must start with /")
	}

	var (
		pattern    strings.Builder
		paramNames []string
	)
	pattern.WriteByte('^')

	segments := strings.Split(template, "/")
	for i, seg := range segments {
		if i > 0 {
			pattern.WriteByte('/')
		}
		switch {
		case seg == "*":
			paramNames = append(paramNames, "*")
			pattern.WriteString("(.*)")
		case strings.HasPrefix(seg, ":"):
			name := seg[1:]
			if name == "" {
				return nil, nil, fmt.Errorf("empty param name in %q", template)
			}
			paramNames = append(paramNames, name)
			pattern.WriteString("([^/]+)")
		default:
			pattern.WriteString(regexp.QuoteMeta(seg))
		}
	}
	pattern.WriteByte('$')

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, nil, err
	}
	return re, paramNames, nil
}
