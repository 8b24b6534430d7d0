package websocket

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("session closed")

// State is a session's position in its lifecycle. States only move forward.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateSending
	StateAwaitingTerminal
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateSending:
		return "sending"
	case StateAwaitingTerminal:
		return "awaiting_terminal"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TerminalKind names the event that ended a session.
type TerminalKind string

const (
	// TerminalMessage: the server sent a message accepted by the session's CompletionFunc.
	TerminalMessage TerminalKind = "message"
	// TerminalError: the transport failed (dial, read or write).
	TerminalError TerminalKind = "error"
	// TerminalPeerClosed: the server closed the connection.
	TerminalPeerClosed TerminalKind = "peer_closed"
	// TerminalLocalClose: Close was called before any other terminal event.
	TerminalLocalClose TerminalKind = "local_close"
)

// Terminal describes the one terminal event of a session.
type Terminal struct {
	Kind    TerminalKind
	Message []byte
	Err     error
	At      time.Time
}

// Completed reports whether the session ended the way a finished transfer
// ends. A peer close counts as completion.
func (t Terminal) Completed() bool {
	return t.Kind == TerminalMessage || t.Kind == TerminalPeerClosed
}

// Message is one frame received from the server.
type Message struct {
	Type int
	Data []byte
}

func (m Message) IsText() bool {
	return m.Type == websocket.TextMessage
}

// CompletionFunc decides whether a server message ends the session.
type CompletionFunc func(Message) bool

// AnyMessage treats the first server message of any kind as completion.
func AnyMessage(Message) bool { return true }

// TextEquals completes on a text frame whose payload is exactly token.
func TextEquals(token string) CompletionFunc {
	return func(m Message) bool {
		return m.IsText() && string(m.Data) == token
	}
}

// Never leaves completion to errors, peer close or Close.
func Never(Message) bool { return false }
