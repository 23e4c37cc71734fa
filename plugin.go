package forge

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	yaml "gopkg.in/yaml.v2"
)

// PluginDescriptor is the static metadata a Plugin advertises.
type PluginDescriptor struct {
	Name         string
	Version      string
	Description  string
	Author       string
	Priority     int // default 500; lower runs its lifecycle hooks first
	Enabled      bool
	Dependencies []string
}

// Plugin extends the server by registering routes and middleware when
// Server.Start publishes the registry, and by participating in the
// server's start/stop lifecycle.
type Plugin interface {
	Descriptor() PluginDescriptor

	// Initialize is called synchronously from addPlugin; a failure
	// aborts the add and the plugin is never appended to the registry.
	Initialize(s *Server) error

	// RegisterRoutes and RegisterMiddleware are called once, during
	// Server.Start, in plugin-priority order — not at add-time — so a
	// plugin added late can still register routes and middleware that
	// run before ones added earlier, if its priority says so.
	RegisterRoutes(r *Router) error
	RegisterMiddleware(s *Server) error

	// OnServerStart runs in priority order at the start boundary;
	// returning false aborts startup. OnServerStop and Shutdown run in
	// reverse priority order at the stop boundary (or to unwind a
	// failed startup). Shutdown must never panic.
	OnServerStart() bool
	OnServerStop()
	Shutdown()
}

// registeredPlugin pairs a Plugin with the descriptor it reported at
// add-time (priority/enabled don't change afterward).
type registeredPlugin struct {
	plugin     Plugin
	descriptor PluginDescriptor
	started    bool
}

// PluginRegistry holds the ordered set of added plugins and runs their
// lifecycle hooks in priority order.
type PluginRegistry struct {
	server  *Server
	plugins []*registeredPlugin

	published bool // true once RegisterRoutes/RegisterMiddleware have run
}

func newPluginRegistry(s *Server) *PluginRegistry {
	return &PluginRegistry{server: s}
}

// Add runs the add-time sequence, with routes/middleware publication
// deferred to Start: duplicate name check, Initialize, append, then a
// stable priority-ascending resort.
func (pr *PluginRegistry) Add(p Plugin) error {
	desc := p.Descriptor()
	if desc.Priority == 0 {
		desc.Priority = 500
	}

	for _, rp := range pr.plugins {
		if rp.descriptor.Name == desc.Name {
			return fmt.Errorf("forge: plugin %q already registered", desc.Name)
		}
	}

	if err := p.Initialize(pr.server); err != nil {
		return fmt.Errorf("forge: initializing plugin %q: %w", desc.Name, err)
	}

	pr.plugins = append(pr.plugins, &registeredPlugin{plugin: p, descriptor: desc})

	sort.SliceStable(pr.plugins, func(i, j int) bool {
		return pr.plugins[i].descriptor.Priority < pr.plugins[j].descriptor.Priority
	})

	return nil
}

// Remove drops a plugin by name. It must not be called after Start.
func (pr *PluginRegistry) Remove(name string) {
	for i, rp := range pr.plugins {
		if rp.descriptor.Name == name {
			pr.plugins = append(pr.plugins[:i], pr.plugins[i+1:]...)
			return
		}
	}
}

// publish registers every enabled plugin's routes and middleware, in
// current (priority) order. Called once, from Server.Start, before the
// accept loop begins.
func (pr *PluginRegistry) publish(r *Router) error {
	if pr.published {
		return nil
	}
	for _, rp := range pr.plugins {
		if !rp.descriptor.Enabled {
			continue
		}
		if err := rp.plugin.RegisterRoutes(r); err != nil {
			return fmt.Errorf("forge: plugin %q registering routes: %w", rp.descriptor.Name, err)
		}
		if err := rp.plugin.RegisterMiddleware(pr.server); err != nil {
			return fmt.Errorf("forge: plugin %q registering middleware: %w", rp.descriptor.Name, err)
		}
	}
	pr.published = true
	return nil
}

// startAll calls OnServerStart on every enabled plugin in priority
// order. If any returns false, it unwinds: OnServerStop+Shutdown on
// every plugin that did start, in reverse order.
func (pr *PluginRegistry) startAll() error {
	for _, rp := range pr.plugins {
		if !rp.descriptor.Enabled {
			continue
		}
		if !rp.plugin.OnServerStart() {
			pr.unwindStarted()
			return fmt.Errorf("forge: plugin %q refused to start", rp.descriptor.Name)
		}
		rp.started = true
	}
	return nil
}

// unwindStarted stops every plugin that reached started=true, in
// reverse order.
func (pr *PluginRegistry) unwindStarted() {
	for i := len(pr.plugins) - 1; i >= 0; i-- {
		rp := pr.plugins[i]
		if !rp.started {
			continue
		}
		safeCall(rp.plugin.OnServerStop)
		safeCall(rp.plugin.Shutdown)
		rp.started = false
	}
}

// stopAll runs the stop-time sequence: OnServerStop then Shutdown, in
// reverse priority order.
func (pr *PluginRegistry) stopAll() {
	pr.unwindStarted()
}

// safeCall runs fn, recovering a panic into a logged error — plugin
// lifecycle hooks, and Shutdown in particular, must never propagate a
// panic out to the orchestrator.
func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logError(fmt.Sprintf("plugin lifecycle hook panicked: %v", r))
		}
	}()
	fn()
}

// PluginManifest is the optional plugin.toml a plugin ships alongside
// its code, so its PluginDescriptor can be authored as data instead of
// Go literals.
type PluginManifest struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Description  string   `toml:"description"`
	Author       string   `toml:"author"`
	Priority     int      `toml:"priority"`
	Enabled      bool     `toml:"enabled"`
	Dependencies []string `toml:"dependencies"`
}

// LoadPluginManifest reads a plugin.toml file into a PluginManifest.
func LoadPluginManifest(path string) (*PluginManifest, error) {
	var m PluginManifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("forge: loading plugin manifest %s: %w", path, err)
	}
	if m.Priority == 0 {
		m.Priority = 500
	}
	return &m, nil
}

// Descriptor converts a PluginManifest into a PluginDescriptor.
func (m *PluginManifest) Descriptor() PluginDescriptor {
	return PluginDescriptor{
		Name:         m.Name,
		Version:      m.Version,
		Description:  m.Description,
		Author:       m.Author,
		Priority:     m.Priority,
		Enabled:      m.Enabled,
		Dependencies: m.Dependencies,
	}
}

// PluginOverride lets an operator enable/disable a plugin or override
// its priority without touching code, via a plugins.yaml manifest that
// LoadPluginOverrides reads. Neither NewServer nor PluginRegistry loads
// or applies overrides; Apply returns an overlaid copy of a descriptor.
type PluginOverride struct {
	Name     string `yaml:"name"`
	Enabled  *bool  `yaml:"enabled"`
	Priority *int   `yaml:"priority"`
}

// LoadPluginOverrides reads an optional plugins.yaml listing
// enable/priority overrides, keyed by plugin name. A missing file is
// not an error — overrides are opt-in.
func LoadPluginOverrides(path string) (map[string]PluginOverride, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]PluginOverride{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("forge: reading plugin overrides %s: %w", path, err)
	}

	var list []PluginOverride
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("forge: parsing plugin overrides %s: %w", path, err)
	}

	out := make(map[string]PluginOverride, len(list))
	for _, o := range list {
		out[o.Name] = o
	}
	return out, nil
}

// Apply overlays a PluginOverride onto a PluginDescriptor.
func (o PluginOverride) Apply(desc PluginDescriptor) PluginDescriptor {
	if o.Enabled != nil {
		desc.Enabled = *o.Enabled
	}
	if o.Priority != nil {
		desc.Priority = *o.Priority
	}
	return desc
}
