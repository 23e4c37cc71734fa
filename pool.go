package forge

import "sync"

// objectPool recycles the two per-request allocations that happen on
// every connection — a Response and a Context — so a busy server
// doesn't pay a fresh heap allocation for either on every accept.
// Request is not pooled: ParseRequest builds one from the connection's
// read buffer each time, and its fields are immutable for the life of
// the request, so there is nothing to reset into a reusable shape.
type objectPool struct {
	responses *sync.Pool
	contexts  *sync.Pool
}

func newObjectPool() *objectPool {
	return &objectPool{
		responses: &sync.Pool{
			New: func() interface{} { return NewResponse() },
		},
		contexts: &sync.Pool{
			New: func() interface{} { return &Context{} },
		},
	}
}

// getResponse returns a Response reset to its zero-value-equivalent
// defaults (200 OK, empty headers, no body, no stream).
func (p *objectPool) getResponse() *Response {
	res := p.responses.Get().(*Response)
	res.reset()
	return res
}

func (p *objectPool) putResponse(res *Response) {
	p.responses.Put(res)
}

// getContext returns a Context wired to req and res, with an empty
// scratch map.
func (p *objectPool) getContext(req *Request, res *Response) *Context {
	c := p.contexts.Get().(*Context)
	c.reset(req, res)
	return c
}

func (p *objectPool) putContext(c *Context) {
	p.contexts.Put(c)
}
