package plugins

import (
	"net"
	"time"

	"github.com/forgehttp/forge"
)

// AccessLog logs one structured line per request: remote address,
// method, path, status, latency, and response size.
type AccessLog struct {
	Base

	Logger *forge.Logger
}

// NewAccessLog returns an AccessLog plugin writing through logger.
func NewAccessLog(logger *forge.Logger) *AccessLog {
	return &AccessLog{
		Base: NewBase(forge.PluginDescriptor{
			Name: "access-log", Priority: 50, Enabled: true,
		}),
		Logger: logger,
	}
}

func (p *AccessLog) RegisterMiddleware(s *forge.Server) error {
	s.Use(func(c *forge.Context, next forge.Next) error {
		start := time.Now()
		err := next()
		latency := time.Since(start)

		remote := c.Request.RemoteAddr
		if ip, _, splitErr := net.SplitHostPort(remote); splitErr == nil {
			remote = ip
		}

		p.Logger.Infof("%s %s %s %d %s %d", remote, c.Request.Method.String(), c.Request.Path,
			c.Response.StatusCode, latency, len(c.Response.Body))
		return err
	})
	return nil
}
