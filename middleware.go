package forge

import "fmt"

// Next is the continuation a Middleware calls to advance one step
// down the chain.
type Next func() error

// Middleware runs once per request with a Context and a Next
// continuation. Calling next() descends to the next middleware (or,
// after the last one, the router); not calling it short-circuits the
// chain — no subsequent middleware and no routing occur. Code after
// next() returns runs once the entire downstream chain (including the
// router) has completed.
type Middleware func(c *Context, next Next) error

// runChain builds the Next closure for middleware i+1 only when
// middleware i calls next, so the whole pipeline runs in registration
// order — m[0].pre, m[1].pre, …, terminal, …, m[1].post, m[0].post.
func runChain(middlewares []Middleware, c *Context, terminal Next) error {
	var next func(i int) Next
	next = func(i int) Next {
		return func() error {
			if i >= len(middlewares) {
				return terminal()
			}
			m := middlewares[i]
			innerCalled := false
			return m(c, func() error {
				if innerCalled {
					return ErrNextCalledTwice
				}
				innerCalled = true
				return next(i + 1)()
			})
		}
	}

	return next(0)()
}

// writeHandlerError maps an error a handler or the router's terminal
// step returned onto a Response. An *HTTPError writes its code/message
// verbatim; anything else is logged here and answered with a 500.
func writeHandlerError(c *Context, err error) {
	if err == nil {
		return
	}
	if he, ok := err.(*HTTPError); ok {
		c.Response.Status(he.Code).Header("Content-Type", "application/json")
		c.Response.JSON(fmt.Sprintf(`{"error":%q}`, he.Message))
		return
	}
	logError(fmt.Sprintf("handler error: %v", err))
	c.Response.Status(500).Header("Content-Type", "application/json")
	c.Response.JSON(fmt.Sprintf(`{"error":%q}`, "internal server error"))
}

// notFoundBody is the minimal HTML body written on a routing miss.
const notFoundBody = "<html><body><h1>404 Not Found</h1></body></html>"

// writeNotFound answers 404 with a small HTML body.
func writeNotFound(c *Context) {
	c.Response.Status(404).HTML(notFoundBody)
}

// writeMethodNotAllowed answers 405 for a path that matched some route
// under a different method.
func writeMethodNotAllowed(c *Context) {
	c.Response.Status(405).Header("Content-Type", "application/json")
	c.Response.JSON(`{"error":"method not allowed"}`)
}
