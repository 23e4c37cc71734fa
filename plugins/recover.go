package plugins

import (
	"fmt"
	"runtime"

	"github.com/forgehttp/forge"
)

// Recover turns a panic anywhere downstream in the chain into a 500
// response instead of crashing the worker that was serving the
// connection. It should be registered first (lowest priority number)
// so it wraps every other plugin's middleware.
type Recover struct {
	Base

	StackSize int
	Logger    *forge.Logger
}

// NewRecover returns a Recover plugin with a 4 KiB stack trace buffer.
func NewRecover(logger *forge.Logger) *Recover {
	return &Recover{
		Base: NewBase(forge.PluginDescriptor{
			Name: "recover", Priority: 10, Enabled: true,
		}),
		StackSize: 4 << 10,
		Logger:    logger,
	}
}

func (p *Recover) RegisterMiddleware(s *forge.Server) error {
	s.Use(func(c *forge.Context, next forge.Next) (err error) {
		defer func() {
			if r := recover(); r != nil {
				stack := make([]byte, p.StackSize)
				n := runtime.Stack(stack, false)
				if p.Logger != nil {
					p.Logger.Errorf("recovered panic: %v\n%s", r, stack[:n])
				}
				err = forge.NewHTTPError(500, fmt.Sprintf("internal server error: %v", r))
			}
		}()
		return next()
	})
	return nil
}
