package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/raihanakbr/asr-streaming-clients/internal/audio"
	"github.com/raihanakbr/asr-streaming-clients/internal/metrics"
	"github.com/raihanakbr/asr-streaming-clients/internal/protocol"
	"github.com/raihanakbr/asr-streaming-clients/internal/websocket"
)

const (
	StreamingSampleRate      = 16000
	DefaultSamplesPerMessage = 8000
	DefaultInterval          = 100 * time.Millisecond
)

// Streaming sends one file in fixed windows at a wall-clock cadence, then
// the end-of-stream marker, and waits for the completion token.
type Streaming struct {
	Addr    string
	Port    int
	Dialer  websocket.Dialer
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	SamplesPerMessage int
	// Interval is the pause between two consecutive windows.
	Interval time.Duration
	Encoding protocol.Encoding
}

func (s *Streaming) common() common {
	return common{Addr: s.Addr, Port: s.Port, Dialer: s.Dialer, Logger: s.Logger, Metrics: s.Metrics}
}

// Run streams path and blocks until the session ends or ctx is done.
func (s *Streaming) Run(ctx context.Context, path string) FileResult {
	c := s.common()
	started := time.Now()
	logger := c.logger().With(slog.String("file", path))
	res := FileResult{Path: path}

	spm := s.SamplesPerMessage
	if spm <= 0 {
		spm = DefaultSamplesPerMessage
	}
	enc := s.Encoding
	if enc == "" {
		enc = protocol.EncodingPCM16
	}

	clip, err := audio.Load(path, audio.Requirements{SampleRate: StreamingSampleRate})
	if err != nil {
		return c.fail(res, logger, StageDecode, err, started)
	}
	windows := protocol.Windows(clip.Samples, spm, enc)

	var (
		mu       sync.Mutex
		lastInfo string
	)
	onMessage := func(m websocket.Message) {
		if !m.IsText() || string(m.Data) == protocol.Completion {
			return
		}
		mu.Lock()
		lastInfo = string(m.Data)
		mu.Unlock()
	}

	sess, err := c.session(websocket.TextEquals(protocol.Completion), onMessage, logger)
	if err != nil {
		return c.fail(res, logger, StageConnect, err, started)
	}
	defer sess.Close()
	res.SessionID = sess.ID

	if err := sess.Connect(ctx); err != nil {
		return c.fail(res, logger, StageConnect, err, started)
	}

	logger.Info("Streaming file",
		slog.Duration("duration", clip.Duration()),
		slog.Int("windows", len(windows)),
		slog.Int("samples_per_message", spm),
		slog.Duration("interval", s.Interval),
		slog.String("encoding", string(enc)),
	)

	err = sess.SendPaced(ctx, windows, s.Interval)
	if err == nil {
		res.Frames = len(windows)
		for _, w := range windows {
			res.Bytes += len(w)
		}
		err = sess.SendText(ctx, protocol.EndOfStream)
	}
	// A write that broke the connection has already ended the session; the
	// wait below sees that terminal event.
	if err != nil && !errors.Is(err, websocket.ErrClosed) && !ended(sess) {
		return c.fail(res, logger, StageSend, err, started)
	}

	term, err := awaitCompletion(ctx, sess)
	res.Terminal = term
	mu.Lock()
	res.Reply = lastInfo
	mu.Unlock()
	if err != nil && term.Kind == websocket.TerminalError {
		// A transport error ends a live stream the same way the token does.
		logger.Warn("Stream ended by transport error", slog.String("error", err.Error()))
		return c.succeed(res, logger, started)
	}
	if err != nil {
		return c.fail(res, logger, StageWait, err, started)
	}
	return c.succeed(res, logger, started)
}

func ended(sess *websocket.Session) bool {
	select {
	case <-sess.Done():
		return true
	default:
		return false
	}
}
