package forge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubPlugin struct {
	desc           PluginDescriptor
	initErr        error
	onStartOK      bool
	routesCalled   bool
	mwCalled       bool
	startCalled    bool
	stopCalled     bool
	shutdownCalled bool
	calls          *[]string
}

func (p *stubPlugin) Descriptor() PluginDescriptor { return p.desc }
func (p *stubPlugin) Initialize(s *Server) error   { return p.initErr }
func (p *stubPlugin) RegisterRoutes(r *Router) error {
	p.routesCalled = true
	return nil
}
func (p *stubPlugin) RegisterMiddleware(s *Server) error {
	p.mwCalled = true
	return nil
}
func (p *stubPlugin) OnServerStart() bool {
	p.startCalled = true
	if p.calls != nil {
		*p.calls = append(*p.calls, p.desc.Name+":start")
	}
	return p.onStartOK
}
func (p *stubPlugin) OnServerStop() {
	p.stopCalled = true
	if p.calls != nil {
		*p.calls = append(*p.calls, p.desc.Name+":stop")
	}
}
func (p *stubPlugin) Shutdown() {
	p.shutdownCalled = true
	if p.calls != nil {
		*p.calls = append(*p.calls, p.desc.Name+":shutdown")
	}
}

func TestPluginRegistryAddRejectsDuplicateName(t *testing.T) {
	s := NewServer(DefaultConfig())
	pr := newPluginRegistry(s)

	p1 := &stubPlugin{desc: PluginDescriptor{Name: "foo", Enabled: true}, onStartOK: true}
	p2 := &stubPlugin{desc: PluginDescriptor{Name: "foo", Enabled: true}, onStartOK: true}

	assert.NoError(t, pr.Add(p1))
	err := pr.Add(p2)
	assert.Error(t, err)
}

func TestPluginRegistryAddFailsOnInitError(t *testing.T) {
	s := NewServer(DefaultConfig())
	pr := newPluginRegistry(s)

	p := &stubPlugin{desc: PluginDescriptor{Name: "bad"}, initErr: assertError("boom")}
	err := pr.Add(p)
	assert.Error(t, err)
}

func TestPluginRegistryPriorityOrdering(t *testing.T) {
	s := NewServer(DefaultConfig())
	pr := newPluginRegistry(s)

	var calls []string
	low := &stubPlugin{desc: PluginDescriptor{Name: "low", Priority: 100, Enabled: true}, onStartOK: true, calls: &calls}
	high := &stubPlugin{desc: PluginDescriptor{Name: "high", Priority: 900, Enabled: true}, onStartOK: true, calls: &calls}

	assert.NoError(t, pr.Add(high))
	assert.NoError(t, pr.Add(low))

	assert.NoError(t, pr.startAll())
	assert.Equal(t, []string{"low:start", "high:start"}, calls)

	pr.stopAll()
	assert.Equal(t, []string{
		"low:start", "high:start",
		"high:stop", "high:shutdown",
		"low:stop", "low:shutdown",
	}, calls)
}

func TestPluginRegistryPublishOnlyEnabled(t *testing.T) {
	s := NewServer(DefaultConfig())
	pr := newPluginRegistry(s)

	disabled := &stubPlugin{desc: PluginDescriptor{Name: "off", Enabled: false}}
	enabled := &stubPlugin{desc: PluginDescriptor{Name: "on", Enabled: true}}

	assert.NoError(t, pr.Add(disabled))
	assert.NoError(t, pr.Add(enabled))

	r := NewRouter()
	assert.NoError(t, pr.publish(r))

	assert.False(t, disabled.routesCalled)
	assert.True(t, enabled.routesCalled)
	assert.True(t, enabled.mwCalled)
}

func TestPluginRegistryPublishIsIdempotent(t *testing.T) {
	s := NewServer(DefaultConfig())
	pr := newPluginRegistry(s)

	p := &stubPlugin{desc: PluginDescriptor{Name: "once", Enabled: true}}
	assert.NoError(t, pr.Add(p))

	r := NewRouter()
	assert.NoError(t, pr.publish(r))
	p.routesCalled = false
	assert.NoError(t, pr.publish(r))
	assert.False(t, p.routesCalled)
}

func TestPluginRegistryStartAllUnwindsOnFailure(t *testing.T) {
	s := NewServer(DefaultConfig())
	pr := newPluginRegistry(s)

	ok := &stubPlugin{desc: PluginDescriptor{Name: "ok", Priority: 100, Enabled: true}, onStartOK: true}
	fails := &stubPlugin{desc: PluginDescriptor{Name: "fails", Priority: 200, Enabled: true}, onStartOK: false}

	assert.NoError(t, pr.Add(ok))
	assert.NoError(t, pr.Add(fails))

	err := pr.startAll()
	assert.Error(t, err)
	assert.True(t, ok.stopCalled)
	assert.True(t, ok.shutdownCalled)
}

func TestPluginRegistryRemove(t *testing.T) {
	s := NewServer(DefaultConfig())
	pr := newPluginRegistry(s)

	p := &stubPlugin{desc: PluginDescriptor{Name: "gone"}}
	assert.NoError(t, pr.Add(p))
	pr.Remove("gone")
	assert.Len(t, pr.plugins, 0)
}

func TestLoadPluginManifestDefaultsPriority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugin.toml")
	contents := "name = \"sample\"\nversion = \"1.0.0\"\nenabled = true\n"
	assert.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	m, err := LoadPluginManifest(path)
	assert.NoError(t, err)
	assert.Equal(t, "sample", m.Name)
	assert.Equal(t, 500, m.Priority)
	assert.True(t, m.Enabled)

	desc := m.Descriptor()
	assert.Equal(t, "sample", desc.Name)
}

func TestLoadPluginOverridesMissingFileIsNotError(t *testing.T) {
	out, err := LoadPluginOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NoError(t, err)
	assert.Empty(t, out)
}

func TestLoadPluginOverridesApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugins.yaml")
	contents := "- name: sample\n  enabled: false\n  priority: 10\n"
	assert.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	overrides, err := LoadPluginOverrides(path)
	assert.NoError(t, err)

	o, ok := overrides["sample"]
	assert.True(t, ok)

	desc := PluginDescriptor{Name: "sample", Enabled: true, Priority: 500}
	desc = o.Apply(desc)
	assert.False(t, desc.Enabled)
	assert.Equal(t, 10, desc.Priority)
}

type assertError string

func (e assertError) Error() string { return string(e) }
