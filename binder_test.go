package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBindJSONBody(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	req := &Request{
		Headers:    NewHeaders(),
		Body:       []byte(`{"name":"alice","age":30}`),
		PathParams: map[string]string{},
	}
	req.Headers.Set("Content-Type", "application/json")
	c := NewContext(req, NewResponse())

	var p payload
	err := c.Bind(&p)
	assert.NoError(t, err)
	assert.Equal(t, "alice", p.Name)
	assert.Equal(t, 30, p.Age)
}

func TestBindJSONEmptyBody(t *testing.T) {
	req := &Request{Headers: NewHeaders(), PathParams: map[string]string{}}
	req.Headers.Set("Content-Type", "application/json")
	c := NewContext(req, NewResponse())

	var out map[string]interface{}
	err := c.Bind(&out)
	assert.Error(t, err)
}

func TestBindQueryParams(t *testing.T) {
	type payload struct {
		Name string
		Age  int
	}

	req := &Request{
		Headers:     NewHeaders(),
		QueryParams: map[string]string{"Name": "bob", "Age": "25"},
		PathParams:  map[string]string{},
	}
	c := NewContext(req, NewResponse())

	var p payload
	err := c.Bind(&p)
	assert.NoError(t, err)
	assert.Equal(t, "bob", p.Name)
	assert.Equal(t, 25, p.Age)
}
