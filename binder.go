package forge

import (
	"encoding/json"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Bind decodes the request into out (a pointer), choosing a strategy
// from the request's Content-Type: a JSON body decodes with
// encoding/json; anything else (including a GET with no body) decodes
// the query-string parameters into out via mapstructure, matching
// struct fields by name or an explicit `mapstructure` tag.
func (c *Context) Bind(out interface{}) error {
	ctype, _ := c.Request.Header("Content-Type")
	if strings.HasPrefix(ctype, "application/json") {
		if len(c.Request.Body) == 0 {
			return NewHTTPError(400, "request body can't be empty")
		}
		if err := json.Unmarshal(c.Request.Body, out); err != nil {
			return NewHTTPError(400, err.Error())
		}
		return nil
	}

	data := make(map[string]interface{}, len(c.Request.QueryParams))
	for k, v := range c.Request.QueryParams {
		data[k] = v
	}
	if err := mapstructure.WeakDecode(data, out); err != nil {
		return NewHTTPError(400, err.Error())
	}
	return nil
}
