package forge

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"sync/atomic"
)

// Server owns the listening socket, the worker pool, the plugin
// registry, and the middleware chain. All client sockets are owned by
// the worker goroutine that accepted them, never by the Server.
type Server struct {
	Config  Config
	Logger  *Logger
	Router  *Router
	Plugins *PluginRegistry

	middlewares []Middleware

	pool     *WorkerPool
	objects  *objectPool
	listener net.Listener

	totalAccepted uint64
	totalClosed   uint64
	activeConns   int64

	stopping int32
	done     chan struct{}
}

// NewServer builds a Server from cfg. It does not open the listening
// socket — that happens in Start, so construction never fails on a
// port conflict.
func NewServer(cfg Config) *Server {
	s := &Server{
		Config: cfg,
		Logger: NewLogger(os.Stdout),
		Router: NewRouter(),
		done:   make(chan struct{}),
	}
	s.Plugins = newPluginRegistry(s)
	s.pool = NewWorkerPool(cfg.QueueSize)
	s.objects = newObjectPool()
	return s
}

// Use appends a middleware to the chain, in registration order. It
// must be called before Start; adding middleware after the accept
// loop has begun is undefined.
func (s *Server) Use(m Middleware) {
	s.middlewares = append(s.middlewares, m)
}

// AddPlugin runs the plugin's Initialize hook and, once Start
// publishes the registry, its RegisterRoutes/RegisterMiddleware in
// priority order.
func (s *Server) AddPlugin(p Plugin) error {
	return s.Plugins.Add(p)
}

// Start publishes plugin routes and middleware in priority order, runs
// every enabled plugin's OnServerStart hook, binds the listening
// socket, and enters the accept loop. It blocks until Stop
// closes the listener or a fatal accept error occurs.
//
// A bind failure, a publish error, or a plugin refusing to start all
// surface here as a returned error; the accept loop is never entered
// in that case.
func (s *Server) Start() error {
	if err := s.Plugins.publish(s.Router); err != nil {
		return err
	}
	if err := s.Plugins.startAll(); err != nil {
		return err
	}

	ln, err := Listen(s.Config.Port)
	if err != nil {
		s.Plugins.stopAll()
		return err
	}
	s.listener = ln

	s.Logger.Infof("listening on port %d", s.Config.Port)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if atomic.LoadInt32(&s.stopping) == 1 {
				close(s.done)
				return nil
			}
			if isTemporary(err) {
				continue
			}
			return err
		}

		atomic.AddUint64(&s.totalAccepted, 1)
		atomic.AddInt64(&s.activeConns, 1)

		accepted := conn
		ok := s.pool.TrySubmit(func() {
			defer s.finishConn(accepted)
			s.serveConn(accepted)
		})
		if !ok {
			s.rejectOverloaded(accepted)
			s.finishConn(accepted)
		}
	}
}

func (s *Server) finishConn(conn net.Conn) {
	conn.Close()
	atomic.AddUint64(&s.totalClosed, 1)
	atomic.AddInt64(&s.activeConns, -1)
}

// rejectOverloaded answers 503 when the worker pool's queue is full:
// the accept loop never blocks indefinitely, and it never silently
// drops a connection without a response.
func (s *Server) rejectOverloaded(conn net.Conn) {
	res := NewResponse().Status(503).Text("server busy")
	conn.Write(res.serialize())
}

// Stop closes the listening socket, which interrupts the blocked
// Accept call, then waits for in-flight connections to finish and
// runs every started plugin's OnServerStop/Shutdown in reverse
// priority order.
func (s *Server) Stop() {
	if !atomic.CompareAndSwapInt32(&s.stopping, 0, 1) {
		return
	}
	if s.listener != nil {
		s.listener.Close()
	}
	<-s.done

	s.pool.Wait()
	s.Plugins.stopAll()
	s.Logger.Infof("stopped; accepted=%d closed=%d", s.TotalAccepted(), s.TotalClosed())
}

// TotalAccepted, TotalClosed, and ActiveConnections expose the
// bookkeeping counters a caller can assert
// total_accepted == total_closed + active at any point in the
// connection lifecycle.
func (s *Server) TotalAccepted() uint64    { return atomic.LoadUint64(&s.totalAccepted) }
func (s *Server) TotalClosed() uint64      { return atomic.LoadUint64(&s.totalClosed) }
func (s *Server) ActiveConnections() int64 { return atomic.LoadInt64(&s.activeConns) }

// Addr returns the listening socket's address, or "" before Start has
// bound it. Useful when Config.Port is 0 and the operating system
// picked the actual port.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// serveConn runs one connection's full per-request lifecycle: read,
// parse, build a Context, run the middleware chain into the router,
// then either serialize the Response or hand the socket to a stream
// continuation. A parse failure answers 400 and the connection still
// closes normally — it is never fatal to the worker.
func (s *Server) serveConn(conn net.Conn) {
	buf, err := readRequest(conn)
	if err != nil {
		if err != io.EOF {
			s.Logger.Debugf("read error from %s: %v", conn.RemoteAddr(), err)
		}
		return
	}
	if len(buf) == 0 {
		return
	}

	req, err := ParseRequest(buf, remoteAddrString(conn))
	if err != nil {
		conn.Write(NewResponse().Status(400).Text(err.Error()).serialize())
		return
	}

	res := s.objects.getResponse()
	c := s.objects.getContext(req, res)
	defer func() {
		s.objects.putContext(c)
		s.objects.putResponse(res)
	}()

	terminal := func() error {
		matched, methodMismatch := s.Router.Match(req, c)
		if !matched {
			if methodMismatch {
				writeMethodNotAllowed(c)
			} else {
				writeNotFound(c)
			}
		}
		return nil
	}

	if err := runChain(s.middlewares, c, terminal); err != nil {
		writeHandlerError(c, err)
	}

	if res.Stream != nil {
		res.Stream(conn, func() bool { return atomic.LoadInt32(&s.stopping) == 1 })
		return
	}

	conn.Write(res.serialize())
}

// readRequest widens the usual single-recv read into a bounded loop: a
// single read normally satisfies the whole request, but if the first
// buffer fills completely and the partial headers promise a body via
// Content-Length, keep reading (up to MaxRequestBytes) until that many
// bytes have arrived.
func readRequest(conn net.Conn) ([]byte, error) {
	r := bufio.NewReaderSize(conn, DefaultReadBufferSize)

	buf := make([]byte, 0, DefaultReadBufferSize)
	chunk := make([]byte, DefaultReadBufferSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if len(buf) > 0 {
				return buf, nil
			}
			return nil, err
		}
		if n < len(chunk) {
			// Short read: the peer paused or finished; either way
			// stop here rather than blocking for more that may never
			// come (a single blocking recv, widened only by the
			// explicit Content-Length loop below).
			break
		}
		if len(buf) >= MaxRequestBytes {
			break
		}
		if want, ok := bufferedContentLength(buf); ok {
			if headerEnd, hok := headerBoundary(buf); hok && len(buf)-headerEnd >= want {
				break
			}
			continue
		}
		break
	}
	return buf, nil
}

// bufferedContentLength looks for a Content-Length header in the
// partially-buffered request without fully parsing it, so the read
// loop can decide whether more bytes are expected.
func bufferedContentLength(buf []byte) (int, bool) {
	headerEnd, ok := headerBoundary(buf)
	if !ok {
		return 0, false
	}
	head := string(buf[:headerEnd])
	const key = "content-length:"
	lower := toLowerASCII(head)
	i := indexOf(lower, key)
	if i < 0 {
		return 0, false
	}
	rest := head[i+len(key):]
	if j := indexOf(rest, "\r\n"); j >= 0 {
		rest = rest[:j]
	}
	n := 0
	for _, c := range rest {
		if c == ' ' {
			continue
		}
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func headerBoundary(buf []byte) (int, bool) {
	i := indexOfBytes(buf, []byte("\r\n\r\n"))
	if i < 0 {
		return 0, false
	}
	return i + 4, true
}

func indexOfBytes(buf, sep []byte) int {
	n, m := len(buf), len(sep)
	for i := 0; i+m <= n; i++ {
		match := true
		for j := 0; j < m; j++ {
			if buf[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func remoteAddrString(conn net.Conn) string {
	if a := conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

func isTemporary(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
