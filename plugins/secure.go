package plugins

import (
	"fmt"

	"github.com/forgehttp/forge"
)

// Secure sets common browser security headers on every response:
// X-XSS-Protection, X-Content-Type-Options, X-Frame-Options, and
// optionally Strict-Transport-Security / Content-Security-Policy.
type Secure struct {
	Base

	XSSProtection         string
	ContentTypeNosniff    string
	XFrameOptions         string
	HSTSMaxAge            int
	HSTSExcludeSubdomains bool
	ContentSecurityPolicy string
}

// NewSecure returns a Secure plugin with the conventional defaults:
// "1; mode=block", "nosniff", "SAMEORIGIN", no HSTS or CSP.
func NewSecure() *Secure {
	return &Secure{
		Base: NewBase(forge.PluginDescriptor{
			Name: "secure", Priority: 100, Enabled: true,
		}),
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
	}
}

func (p *Secure) RegisterMiddleware(s *forge.Server) error {
	s.Use(func(c *forge.Context, next forge.Next) error {
		if err := next(); err != nil {
			return err
		}
		if p.XSSProtection != "" {
			c.SetHeader("X-XSS-Protection", p.XSSProtection)
		}
		if p.ContentTypeNosniff != "" {
			c.SetHeader("X-Content-Type-Options", p.ContentTypeNosniff)
		}
		if p.XFrameOptions != "" {
			c.SetHeader("X-Frame-Options", p.XFrameOptions)
		}
		if p.HSTSMaxAge != 0 {
			subdomains := ""
			if !p.HSTSExcludeSubdomains {
				subdomains = "; includeSubdomains"
			}
			c.SetHeader("Strict-Transport-Security", fmt.Sprintf("max-age=%d%s", p.HSTSMaxAge, subdomains))
		}
		if p.ContentSecurityPolicy != "" {
			c.SetHeader("Content-Security-Policy", p.ContentSecurityPolicy)
		}
		return nil
	})
	return nil
}
