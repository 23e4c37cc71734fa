package plugins

import (
	"strings"

	"github.com/forgehttp/forge"
)

// CORS answers Cross-Origin Resource Sharing headers on every
// response, per https://developer.mozilla.org/docs/Web/HTTP/CORS.
type CORS struct {
	Base

	AllowOrigins     []string
	AllowCredentials bool
	ExposeHeaders    []string
}

// NewCORS returns a CORS plugin allowing any origin ("*"), the
// conventional permissive default for a development/sample server.
func NewCORS(allowOrigins ...string) *CORS {
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}
	return &CORS{
		Base: NewBase(forge.PluginDescriptor{
			Name: "cors", Priority: 110, Enabled: true,
		}),
		AllowOrigins: allowOrigins,
	}
}

func (p *CORS) RegisterMiddleware(s *forge.Server) error {
	exposeHeaders := strings.Join(p.ExposeHeaders, ",")

	s.Use(func(c *forge.Context, next forge.Next) error {
		origin, originSet := c.Header("Origin")

		c.Response.AddHeader("Vary", "Origin")
		allowed := ""
		for _, o := range p.AllowOrigins {
			if o == "*" || o == origin {
				allowed = o
				break
			}
		}
		if !originSet || allowed == "" {
			return next()
		}

		c.SetHeader("Access-Control-Allow-Origin", allowed)
		if p.AllowCredentials {
			c.SetHeader("Access-Control-Allow-Credentials", "true")
		}
		if exposeHeaders != "" {
			c.SetHeader("Access-Control-Expose-Headers", exposeHeaders)
		}
		return next()
	})
	return nil
}
