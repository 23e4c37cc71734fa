package forge

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Port = 0
	s := NewServer(cfg)

	ln, err := Listen(0)
	assert.NoError(t, err)
	s.listener = ln
	s.Config.Port = uint16(ln.Addr().(*net.TCPAddr).Port)
	t.Cleanup(func() { ln.Close() })

	assert.NoError(t, s.Router.Register(GET, "/ping", func(c *Context) error {
		c.Text("pong")
		return nil
	}))

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.serveConn(conn)
			conn.Close()
		}
	}()

	return s, ln.Addr().String()
}

func TestServeConnBasicGET(t *testing.T) {
	_, addr := newTestServer(t)

	conn, err := net.Dial("tcp", addr)
	assert.NoError(t, err)
	defer conn.Close()

	req, _ := http.NewRequest("GET", "/ping", nil)
	req.Write(conn)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	assert.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "pong", string(body))
}

func TestServeConnNotFound(t *testing.T) {
	_, addr := newTestServer(t)

	conn, err := net.Dial("tcp", addr)
	assert.NoError(t, err)
	defer conn.Close()

	req, _ := http.NewRequest("GET", "/missing", nil)
	req.Write(conn)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
}

func TestServerStartStopGraceful(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 0
	s := NewServer(cfg)
	assert.NoError(t, s.Router.Register(GET, "/ping", func(c *Context) error {
		c.Text("pong")
		return nil
	}))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	var addr string
	for i := 0; i < 100; i++ {
		if s.listener != nil {
			addr = s.listener.Addr().String()
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.NotEmpty(t, addr)

	conn, err := net.Dial("tcp", addr)
	assert.NoError(t, err)
	req, _ := http.NewRequest("GET", "/ping", nil)
	req.Write(conn)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	assert.NoError(t, err)
	resp.Body.Close()
	conn.Close()

	s.Stop()
	err = <-errCh
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), s.TotalAccepted())
	assert.Equal(t, uint64(1), s.TotalClosed())
}
