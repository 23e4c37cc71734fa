package plugins

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/forgehttp/forge"
)

// Socket wraps a gorilla/websocket connection with the handler
// callbacks a caller installs before the peer's read loop starts.
type Socket struct {
	TextHandler   func(text string) error
	BinaryHandler func(b []byte) error
	ErrorHandler  func(err error)

	conn *websocket.Conn
}

func (ws *Socket) WriteText(text string) error {
	return ws.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (ws *Socket) WriteBinary(b []byte) error {
	return ws.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (ws *Socket) Close() error {
	return ws.conn.Close()
}

// readLoop blocks dispatching incoming frames to the installed
// handlers until the peer closes the connection or shouldStop fires.
func (ws *Socket) readLoop(shouldStop func() bool) {
	for !shouldStop() {
		mt, data, err := ws.conn.ReadMessage()
		if err != nil {
			if ws.ErrorHandler != nil {
				ws.ErrorHandler(err)
			}
			return
		}
		switch mt {
		case websocket.TextMessage:
			if ws.TextHandler != nil {
				if err := ws.TextHandler(string(data)); err != nil {
					return
				}
			}
		case websocket.BinaryMessage:
			if ws.BinaryHandler != nil {
				if err := ws.BinaryHandler(data); err != nil {
					return
				}
			}
		}
	}
}

// hijackResponseWriter adapts a raw, already-taken-over net.Conn into
// the http.ResponseWriter + http.Hijacker pair gorilla/websocket's
// Upgrader expects, so the handshake can run through the supported
// Upgrade path instead of a hand-rolled one. Upgrade hijacks it
// immediately in the common case; WriteHeader/Write only run if
// Upgrade rejects the handshake and reports the error through them.
type hijackResponseWriter struct {
	conn        net.Conn
	header      http.Header
	wroteHeader bool
}

func newHijackResponseWriter(conn net.Conn) *hijackResponseWriter {
	return &hijackResponseWriter{conn: conn, header: make(http.Header)}
}

func (w *hijackResponseWriter) Header() http.Header { return w.header }

func (w *hijackResponseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.conn.Write([]byte(fmt.Sprintf("HTTP/1.1 %d %s\r\n", status, http.StatusText(status))))
	w.header.Write(w.conn)
	w.conn.Write([]byte("\r\n"))
}

func (w *hijackResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.conn.Write(b)
}

func (w *hijackResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	rw := bufio.NewReadWriter(bufio.NewReader(w.conn), bufio.NewWriter(w.conn))
	return w.conn, rw, nil
}

// WebSocketEcho upgrades a route to a WebSocket echo endpoint: every
// text or binary frame it receives is written straight back.
type WebSocketEcho struct {
	Base

	Path string
}

// NewWebSocketEcho returns a WebSocketEcho plugin mounted at path.
func NewWebSocketEcho(path string) *WebSocketEcho {
	return &WebSocketEcho{
		Base: NewBase(forge.PluginDescriptor{
			Name: "websocket-echo", Priority: 600, Enabled: true,
		}),
		Path: path,
	}
}

func (p *WebSocketEcho) RegisterRoutes(r *forge.Router) error {
	return r.Register(forge.GET, p.Path, func(c *forge.Context) error {
		header := make(http.Header, 8)
		c.Request.Headers.Each(func(name, value string) {
			header.Add(name, value)
		})

		handshake := &http.Request{
			Method:     http.MethodGet,
			URL:        &url.URL{Path: c.Request.Path},
			Proto:      "HTTP/1.1",
			ProtoMajor: 1,
			ProtoMinor: 1,
			Header:     header,
		}

		upgrader := &websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		}

		c.TakeOverSocket(func(conn net.Conn, shouldStop func() bool) error {
			wsConn, err := upgrader.Upgrade(newHijackResponseWriter(conn), handshake, nil)
			if err != nil {
				return err
			}

			ws := &Socket{conn: wsConn}
			ws.TextHandler = func(text string) error { return ws.WriteText(text) }
			ws.BinaryHandler = func(b []byte) error { return ws.WriteBinary(b) }
			ws.readLoop(shouldStop)
			return nil
		})
		return nil
	})
}
