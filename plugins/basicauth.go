package plugins

import (
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/forgehttp/forge"
)

// BasicAuth validates an HTTP Basic Authorization header against a
// username and a bcrypt password hash, guarding every route unless
// Skip returns true for the request.
type BasicAuth struct {
	Base

	Username     string
	PasswordHash []byte
	Realm        string
	Skip         func(c *forge.Context) bool
}

// NewBasicAuth returns a BasicAuth plugin. passwordHash is a bcrypt
// hash (see golang.org/x/crypto/bcrypt.GenerateFromPassword), never a
// plaintext password.
func NewBasicAuth(username string, passwordHash []byte) *BasicAuth {
	return &BasicAuth{
		Base: NewBase(forge.PluginDescriptor{
			Name: "basic-auth", Priority: 200, Enabled: true,
		}),
		Username:     username,
		PasswordHash: passwordHash,
		Realm:        "Restricted",
	}
}

func (p *BasicAuth) RegisterMiddleware(s *forge.Server) error {
	s.Use(func(c *forge.Context, next forge.Next) error {
		if p.Skip != nil && p.Skip(c) {
			return next()
		}

		auth, _ := c.Header("Authorization")
		const prefix = "Basic "
		if strings.HasPrefix(auth, prefix) {
			raw, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
			if err == nil {
				if i := strings.IndexByte(string(raw), ':'); i >= 0 {
					user, pass := string(raw[:i]), string(raw[i+1:])
					if user == p.Username && bcrypt.CompareHashAndPassword(p.PasswordHash, []byte(pass)) == nil {
						return next()
					}
				}
			}
		}

		c.SetHeader("WWW-Authenticate", "Basic realm="+p.Realm)
		return forge.NewHTTPError(401, "unauthorized")
	})
	return nil
}
