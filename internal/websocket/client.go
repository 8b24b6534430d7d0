package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/raihanakbr/asr-streaming-clients/internal/metrics"
)

type Dialer interface {
	DialContext(context.Context, string, http.Header) (*websocket.Conn, *http.Response, error)
}

// Options configure a Session.
type Options struct {
	Addr string
	Port int
	// Dialer defaults to websocket.DefaultDialer.
	Dialer   Dialer
	Complete CompletionFunc
	// OnMessage sees every server message, terminal or not, from the read goroutine.
	OnMessage func(Message)
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Session is one outbound connection to the recognition server. It is owned
// by a single goroutine; only the read loop runs alongside it.
type Session struct {
	ID  string
	URL string

	dialer    Dialer
	complete  CompletionFunc
	onMessage func(Message)
	logger    *slog.Logger
	metrics   *metrics.Metrics

	conn     *websocket.Conn
	writeMu  sync.Mutex
	state    atomic.Int32
	openedAt time.Time

	terminal     Terminal
	terminalOnce sync.Once
	done         chan struct{}
	readDone     chan struct{}
	closeOnce    sync.Once
}

// NewSession creates an idle session with a fresh ULID.
func NewSession(opts Options) (*Session, error) {
	addr := opts.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid server port %d", port)
	}

	u := url.URL{Scheme: DefaultScheme, Host: net.JoinHostPort(addr, strconv.Itoa(port))}
	if _, err := url.Parse(u.String()); err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", addr, err)
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	complete := opts.Complete
	if complete == nil {
		complete = AnyMessage
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := ulid.Make().String()
	return &Session{
		ID:        id,
		URL:       u.String(),
		dialer:    dialer,
		complete:  complete,
		onMessage: opts.OnMessage,
		logger:    logger.With(slog.String("session", id)),
		metrics:   opts.Metrics,
		done:      make(chan struct{}),
		readDone:  make(chan struct{}),
	}, nil
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// advance moves the state forward to next; it never moves backwards.
func (s *Session) advance(next State) {
	for {
		cur := s.state.Load()
		if State(cur) >= next {
			return
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			return
		}
	}
}

// Done is closed once the terminal event has fired.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Connect dials the server and starts the read loop. Sending may begin as
// soon as it returns; the server sends no ready signal.
func (s *Session) Connect(ctx context.Context) error {
	if s.State() != StateIdle {
		return fmt.Errorf("session %s already used (state %s)", s.ID, s.State())
	}
	s.advance(StateConnecting)
	s.logger.Info("Connecting", slog.String("url", s.URL))

	conn, resp, err := s.dialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (HTTP %s)", err, resp.Status)
		}
		err = fmt.Errorf("failed to connect to %s: %w", s.URL, err)
		s.resolve(Terminal{Kind: TerminalError, Err: err})
		return err
	}

	s.conn = conn
	s.openedAt = time.Now()
	s.advance(StateOpen)
	s.metrics.SessionStarted()
	s.logger.Info("Connected", slog.String("url", s.URL))

	go s.readLoop()
	return nil
}

func (s *Session) readLoop() {
	defer close(s.readDone)

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			// Any close frame from the server ends the session normally, whatever
			// its code. 1006 is synthesized locally when the socket drops.
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
				s.logger.Info("Server closed connection",
					slog.Int("code", ce.Code),
					slog.String("reason", ce.Text),
				)
				s.resolve(Terminal{Kind: TerminalPeerClosed, Err: err})
			} else {
				s.resolve(Terminal{Kind: TerminalError, Err: fmt.Errorf("read: %w", err)})
			}
			return
		}

		msg := Message{Type: messageType, Data: data}
		if s.onMessage != nil {
			s.onMessage(msg)
		}

		if s.complete(msg) {
			s.resolve(Terminal{Kind: TerminalMessage, Message: data})
			continue
		}

		if msg.IsText() {
			s.logger.Info("Server message", slog.String("text", string(data)))
		} else {
			s.logger.Debug("Server binary message ignored", slog.Int("bytes", len(data)))
		}
	}
}

// resolve records the first terminal event and releases every waiter.
func (s *Session) resolve(t Terminal) {
	s.terminalOnce.Do(func() {
		t.At = time.Now()
		s.terminal = t
		s.state.Store(int32(StateClosed))
		close(s.done)

		if !s.openedAt.IsZero() {
			s.metrics.SessionEnded(string(t.Kind), t.At.Sub(s.openedAt))
		}

		attrs := []any{slog.String("kind", string(t.Kind))}
		if t.Err != nil {
			attrs = append(attrs, slog.String("error", t.Err.Error()))
		}
		if t.Kind == TerminalError {
			s.logger.Error("Session ended", attrs...)
		} else {
			s.logger.Info("Session ended", attrs...)
		}
	})
}

func (s *Session) write(messageType int, data []byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if s.conn == nil {
		return fmt.Errorf("session %s not connected", s.ID)
	}

	s.writeMu.Lock()
	err := s.conn.WriteMessage(messageType, data)
	s.writeMu.Unlock()
	if err != nil {
		err = fmt.Errorf("write: %w", err)
		s.resolve(Terminal{Kind: TerminalError, Err: err})
		return err
	}

	frameType := "binary"
	if messageType == websocket.TextMessage {
		frameType = "text"
	}
	s.metrics.FrameSent(frameType, len(data))
	return nil
}

// SendBinary sends frames back to back, in order.
func (s *Session) SendBinary(ctx context.Context, frames [][]byte) error {
	return s.SendPaced(ctx, frames, 0)
}

// SendPaced sends frames in order, waiting interval between consecutive
// frames. It stops early when ctx is cancelled or the session terminates.
func (s *Session) SendPaced(ctx context.Context, frames [][]byte, interval time.Duration) error {
	s.advance(StateSending)

	var timer *time.Timer
	if interval > 0 {
		timer = time.NewTimer(interval)
		defer timer.Stop()
	}

	for i, frame := range frames {
		if i > 0 && timer != nil {
			timer.Reset(interval)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.done:
				return ErrClosed
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.write(websocket.BinaryMessage, frame); err != nil {
			return err
		}
	}
	return nil
}

// SendText sends one text frame.
func (s *Session) SendText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.advance(StateSending)
	return s.write(websocket.TextMessage, []byte(text))
}

// Wait blocks until the terminal event or until ctx is done.
func (s *Session) Wait(ctx context.Context) (Terminal, error) {
	s.advance(StateAwaitingTerminal)
	select {
	case <-s.done:
		return s.terminal, nil
	case <-ctx.Done():
		return Terminal{}, ctx.Err()
	}
}

// Close performs a normal-closure handshake and releases the connection.
// It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.resolve(Terminal{Kind: TerminalLocalClose})
		if s.conn == nil {
			return
		}

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, CloseReason)
		if werr := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(ControlWriteTimeout)); werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			s.logger.Debug("Close handshake not sent", slog.String("error", werr.Error()))
		} else {
			select {
			case <-s.readDone:
			case <-time.After(CloseGracePeriod):
			}
		}

		err = s.conn.Close()
		s.logger.Info("Closed connection")
	})
	return err
}
