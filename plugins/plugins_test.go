package plugins

import (
	"bufio"
	"compress/gzip"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/forgehttp/forge"
)

func startTestServer(t *testing.T, configure func(s *forge.Server)) string {
	t.Helper()
	cfg := forge.DefaultConfig()
	cfg.Port = 0
	s := forge.NewServer(cfg)
	configure(s)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()
	t.Cleanup(func() { s.Stop() })

	var addr string
	for i := 0; i < 200; i++ {
		a := s.Addr()
		if a != "" {
			addr = a
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.NotEmpty(t, addr)
	return addr
}

func doGet(t *testing.T, addr, path string, headers map[string]string) *http.Response {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	assert.NoError(t, err)
	req, _ := http.NewRequest("GET", path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Write(conn)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	assert.NoError(t, err)
	return resp
}

func TestCORSAllowsWildcardOrigin(t *testing.T) {
	addr := startTestServer(t, func(s *forge.Server) {
		assert.NoError(t, s.AddPlugin(NewCORS()))
		assert.NoError(t, s.Router.Register(forge.GET, "/x", func(c *forge.Context) error {
			c.Text("ok")
			return nil
		}))
	})

	resp := doGet(t, addr, "/x", map[string]string{"Origin": "https://example.com"})
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSecureSetsHeaders(t *testing.T) {
	addr := startTestServer(t, func(s *forge.Server) {
		assert.NoError(t, s.AddPlugin(NewSecure()))
		assert.NoError(t, s.Router.Register(forge.GET, "/x", func(c *forge.Context) error {
			c.Text("ok")
			return nil
		}))
	})

	resp := doGet(t, addr, "/x", nil)
	defer resp.Body.Close()
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))
}

func TestGzipCompressesWhenAccepted(t *testing.T) {
	addr := startTestServer(t, func(s *forge.Server) {
		assert.NoError(t, s.AddPlugin(NewGzip()))
		assert.NoError(t, s.Router.Register(forge.GET, "/x", func(c *forge.Context) error {
			c.Text("hello hello hello hello hello hello")
			return nil
		}))
	})

	resp := doGet(t, addr, "/x", map[string]string{"Accept-Encoding": "gzip"})
	defer resp.Body.Close()
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	zr, err := gzip.NewReader(resp.Body)
	assert.NoError(t, err)
	body, err := io.ReadAll(zr)
	assert.NoError(t, err)
	assert.Equal(t, "hello hello hello hello hello hello", string(body))
}

func TestRecoverTurnsPanicInto500(t *testing.T) {
	addr := startTestServer(t, func(s *forge.Server) {
		assert.NoError(t, s.AddPlugin(NewRecover(forge.NewLogger(io.Discard))))
		assert.NoError(t, s.Router.Register(forge.GET, "/boom", func(c *forge.Context) error {
			panic("kaboom")
		}))
	})

	resp := doGet(t, addr, "/boom", nil)
	defer resp.Body.Close()
	assert.Equal(t, 500, resp.StatusCode)
}

func TestBasicAuthRejectsAndAccepts(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	assert.NoError(t, err)

	addr := startTestServer(t, func(s *forge.Server) {
		assert.NoError(t, s.AddPlugin(NewBasicAuth("alice", hash)))
		assert.NoError(t, s.Router.Register(forge.GET, "/secret", func(c *forge.Context) error {
			c.Text("top secret")
			return nil
		}))
	})

	resp := doGet(t, addr, "/secret", nil)
	defer resp.Body.Close()
	assert.Equal(t, 401, resp.StatusCode)

	conn, err := net.Dial("tcp", addr)
	assert.NoError(t, err)
	req, _ := http.NewRequest("GET", "/secret", nil)
	req.SetBasicAuth("alice", "hunter2")
	req.Write(conn)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp2, err := http.ReadResponse(bufio.NewReader(conn), req)
	assert.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, 200, resp2.StatusCode)
}

func TestAccessLogDoesNotBreakRequest(t *testing.T) {
	var buf logBuffer
	addr := startTestServer(t, func(s *forge.Server) {
		logger := forge.NewLogger(&buf)
		assert.NoError(t, s.AddPlugin(NewAccessLog(logger)))
		assert.NoError(t, s.Router.Register(forge.GET, "/x", func(c *forge.Context) error {
			c.Text("ok")
			return nil
		}))
	})

	resp := doGet(t, addr, "/x", nil)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.NotEmpty(t, buf.String())
}

type logBuffer struct {
	data []byte
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *logBuffer) String() string { return string(b.data) }

func TestStaticFilesServesAndBlocksTraversal(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi there"), 0o644))

	sf, err := NewStaticFiles("/static/", dir, 1<<20, nil)
	assert.NoError(t, err)

	addr := startTestServer(t, func(s *forge.Server) {
		assert.NoError(t, s.AddPlugin(sf))
	})

	resp := doGet(t, addr, "/static/hello.txt", nil)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "hi there", string(body))

	resp2 := doGet(t, addr, "/static/../secret.txt", nil)
	defer resp2.Body.Close()
	assert.NotEqual(t, 200, resp2.StatusCode)
}

func TestWebSocketEchoRoundTrip(t *testing.T) {
	addr := startTestServer(t, func(s *forge.Server) {
		assert.NoError(t, s.AddPlugin(NewWebSocketEcho("/ws")))
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	assert.NoError(t, err)
	defer conn.Close()

	assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	assert.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, "ping", string(data))
}

func TestNewBaseDefaultsPriority(t *testing.T) {
	b := NewBase(forge.PluginDescriptor{Name: "x"})
	assert.Equal(t, 500, b.Descriptor().Priority)
}
