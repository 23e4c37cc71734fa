// Package plugins bundles sample Plugin implementations built on the
// core's Plugin interface: cross-cutting middleware (CORS, gzip,
// secure headers, panic recovery, access logging, basic auth) and two
// full endpoints (static file serving, a WebSocket echo). Each is
// independently usable — none depend on another plugin being present.
package plugins

import "github.com/forgehttp/forge"

// Base implements every method of forge.Plugin with a reasonable
// no-op, so a concrete plugin embeds it and overrides only what it
// needs — the same shape the core's own sample plugins use.
type Base struct {
	desc forge.PluginDescriptor
}

// NewBase returns a Base reporting desc from Descriptor. Callers must
// set desc.Enabled explicitly — forge.PluginDescriptor's zero value is
// disabled, so every sample plugin constructor in this package sets it
// to true rather than relying on a default.
func NewBase(desc forge.PluginDescriptor) Base {
	if desc.Priority == 0 {
		desc.Priority = 500
	}
	return Base{desc: desc}
}

func (b *Base) Descriptor() forge.PluginDescriptor    { return b.desc }
func (b *Base) Initialize(*forge.Server) error        { return nil }
func (b *Base) RegisterRoutes(*forge.Router) error     { return nil }
func (b *Base) RegisterMiddleware(*forge.Server) error { return nil }
func (b *Base) OnServerStart() bool                    { return true }
func (b *Base) OnServerStop()                          {}
func (b *Base) Shutdown()                              {}
