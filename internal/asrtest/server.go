// Package asrtest provides an in-process stand-in for the recognition server.
package asrtest

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raihanakbr/asr-streaming-clients/internal/protocol"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Frame is one message received from a client.
type Frame struct {
	Type int
	Data []byte
	At   time.Time
}

// Conn records everything a single client connection sent.
type Conn struct {
	mu     sync.Mutex
	ws     *websocket.Conn
	frames []Frame
	done   chan struct{}
}

func (c *Conn) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

// Binary returns only the binary frames, in arrival order.
func (c *Conn) Binary() []Frame {
	var out []Frame
	for _, f := range c.Frames() {
		if f.Type == websocket.BinaryMessage {
			out = append(out, f)
		}
	}
	return out
}

// Payload concatenates all binary frames.
func (c *Conn) Payload() []byte {
	var buf bytes.Buffer
	for _, f := range c.Binary() {
		buf.Write(f.Data)
	}
	return buf.Bytes()
}

// Texts returns the text frames as strings.
func (c *Conn) Texts() []string {
	var out []string
	for _, f := range c.Frames() {
		if f.Type == websocket.TextMessage {
			out = append(out, string(f.Data))
		}
	}
	return out
}

// Done is closed when the connection has ended.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Send writes a text frame to the client.
func (c *Conn) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, []byte(text))
}

// CloseNormal starts a normal-closure handshake from the server side.
func (c *Conn) CloseNormal() error {
	return c.CloseWith(websocket.CloseNormalClosure, "bye")
}

// CloseWith sends a close frame carrying code and text.
func (c *Conn) CloseWith(code int, text string) error {
	return c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

// Drop closes the TCP connection without a close frame.
func (c *Conn) Drop() error {
	return c.ws.Close()
}

// Handler reacts to each frame a client sends. It runs on the connection's
// read goroutine.
type Handler func(c *Conn, f Frame)

// Server is an httptest-backed WebSocket endpoint.
type Server struct {
	*httptest.Server

	handler Handler
	dials   atomic.Int32

	mu    sync.Mutex
	conns []*Conn
}

// NewServer starts a server that passes every frame to h.
func NewServer(h Handler) *Server {
	s := &Server{handler: h}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handleWebSocketConnection))
	return s
}

func (s *Server) handleWebSocketConnection(w http.ResponseWriter, r *http.Request) {
	s.dials.Add(1)

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &Conn{ws: ws, done: make(chan struct{})}
	s.mu.Lock()
	s.conns = append(s.conns, c)
	s.mu.Unlock()

	go func() {
		defer close(c.done)
		defer ws.Close()

		for {
			messageType, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			f := Frame{Type: messageType, Data: data, At: time.Now()}
			c.mu.Lock()
			c.frames = append(c.frames, f)
			c.mu.Unlock()

			if s.handler != nil {
				s.handler(c, f)
			}
		}
	}()
}

// Dials counts connection attempts that reached the server.
func (s *Server) Dials() int {
	return int(s.dials.Load())
}

func (s *Server) Conns() []*Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Conn, len(s.conns))
	copy(out, s.conns)
	return out
}

// HostPort splits the server address for client options.
func (s *Server) HostPort() (string, int) {
	host, port, err := net.SplitHostPort(strings.TrimPrefix(s.URL, "http://"))
	if err != nil {
		panic(err)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		panic(err)
	}
	return host, n
}

// BatchReplier answers once a full length-prefixed message has arrived.
// Messages are accumulated per connection so that several files can be sent
// one after another on the same socket.
func BatchReplier(reply func(sampleRate int, payload []byte) string) Handler {
	var mu sync.Mutex
	pending := map[*Conn][]byte{}

	return func(c *Conn, f Frame) {
		if f.Type != websocket.BinaryMessage {
			return
		}
		mu.Lock()
		buf := append(pending[c], f.Data...)
		rate, n, err := protocol.DecodeBatchHeader(buf)
		if err != nil || len(buf) < protocol.HeaderSize+n {
			pending[c] = buf
			mu.Unlock()
			return
		}
		payload := buf[protocol.HeaderSize : protocol.HeaderSize+n]
		pending[c] = append([]byte(nil), buf[protocol.HeaderSize+n:]...)
		mu.Unlock()

		_ = c.Send(reply(rate, payload))
	}
}

// StreamingReplier acknowledges the end-of-stream marker with the
// completion token, optionally preceded by informational text.
func StreamingReplier(info ...string) Handler {
	return func(c *Conn, f Frame) {
		if f.Type != websocket.TextMessage || string(f.Data) != protocol.EndOfStream {
			return
		}
		for _, text := range info {
			_ = c.Send(text)
		}
		_ = c.Send(protocol.Completion)
	}
}
