package plugins

import (
	"os"

	"github.com/forgehttp/forge"
)

// StaticFiles serves files beneath Root at a mounted URL prefix,
// resolving every request through a path-safety resolver (so "../"
// traversal answers 403, never a file outside Root) and caching file
// bytes in memory via forge.AssetCache.
type StaticFiles struct {
	Base

	resolver *forge.PathResolver
	cache    *forge.AssetCache
	mount    string
}

// NewStaticFiles returns a StaticFiles plugin mounted at mount (e.g.
// "/static/"), serving root, with up to cacheBytes of file content
// cached in memory. minifier may be nil.
func NewStaticFiles(mount, root string, cacheBytes int, minifier *forge.Minifier) (*StaticFiles, error) {
	resolver, err := forge.NewPathResolver(root, mount, "index.html")
	if err != nil {
		return nil, err
	}
	cache, err := forge.NewAssetCache(cacheBytes, minifier)
	if err != nil {
		return nil, err
	}
	return &StaticFiles{
		Base: NewBase(forge.PluginDescriptor{
			Name: "static-files", Priority: 700, Enabled: true,
		}),
		resolver: resolver,
		cache:    cache,
		mount:    mount,
	}, nil
}

func (p *StaticFiles) RegisterRoutes(r *forge.Router) error {
	return r.Register(forge.GET, p.mount+"*", func(c *forge.Context) error {
		resolved, ok := p.resolver.Resolve(c.Request.Path)
		if !ok {
			return forge.NewHTTPError(403, "forbidden")
		}

		b, contentType, err := p.cache.Get(resolved)
		if err != nil {
			if os.IsNotExist(err) {
				return forge.NewHTTPError(404, "not found")
			}
			return forge.NewHTTPError(500, "")
		}

		c.SetHeader("Content-Type", contentType)
		c.Body(b)
		return nil
	})
}

func (p *StaticFiles) Shutdown() {
	p.cache.Close()
}
