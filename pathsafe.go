package forge

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// PathResolver canonicalizes a requested URL path against a trusted
// document root and rejects any attempt to escape it. Construct one
// with NewPathResolver, which fails plugin init if root doesn't exist
// or isn't a directory.
type PathResolver struct {
	root        string // canonicalized
	mountPrefix string
	defaultFile string
}

// NewPathResolver canonicalizes root and returns a PathResolver
// mounted at mountPrefix. defaultFile defaults to "index.html" when
// empty.
func NewPathResolver(root, mountPrefix, defaultFile string) (*PathResolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(canon)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, os.ErrInvalid
	}
	if defaultFile == "" {
		defaultFile = "index.html"
	}
	return &PathResolver{root: canon, mountPrefix: mountPrefix, defaultFile: defaultFile}, nil
}

// Resolve maps a requested URL path to an absolute filesystem path
// under root. It returns ("", false) for any path that would escape
// root — the caller logs that as a potential traversal attempt and
// answers 403.
func (pr *PathResolver) Resolve(requested string) (string, bool) {
	rel := strings.TrimPrefix(requested, pr.mountPrefix)

	if rel == "" || strings.HasSuffix(rel, "/") {
		rel = path.Join(rel, pr.defaultFile)
	}

	// Normalize to a path with no leading slash before cleaning, so
	// path.Clean treats it as relative. Cleaning an absolute-looking
	// path (leading "/") resolves ".." against that leading slash and
	// clamps an escape at the root instead of rejecting it —
	// path.Clean("/../../etc/passwd") is "/etc/passwd", which then
	// joins right back under root. Cleaning the relative form instead
	// leaves an unresolvable leading ".." in place, so it can be
	// detected and rejected rather than silently clamped.
	rel = strings.TrimPrefix(rel, "/")
	cleaned := path.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}

	joined := filepath.Join(pr.root, cleaned)

	// The joined path may not exist yet still be within root (a plain
	// 404 case for the caller) — only a symlink target needs
	// re-verification after canonicalization.
	canon := joined
	if resolved, err := filepath.EvalSymlinks(joined); err == nil {
		canon = resolved
	}

	if !pathHasRoot(canon, pr.root) {
		return "", false
	}
	if !pathHasRoot(joined, pr.root) {
		return "", false
	}

	return joined, true
}

// pathHasRoot reports whether p lies under root with a separator
// boundary, so "/var/www2" is not considered under "/var/www".
func pathHasRoot(p, root string) bool {
	if p == root {
		return true
	}
	return strings.HasPrefix(p, root+string(filepath.Separator))
}
