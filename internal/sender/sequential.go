package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raihanakbr/asr-streaming-clients/internal/audio"
	"github.com/raihanakbr/asr-streaming-clients/internal/metrics"
	"github.com/raihanakbr/asr-streaming-clients/internal/protocol"
	"github.com/raihanakbr/asr-streaming-clients/internal/websocket"
)

// Sequential sends several files one after another on a single connection.
// Each file is a batch message answered by exactly one server reply; the
// end-of-stream marker follows the last file.
type Sequential struct {
	Addr    string
	Port    int
	Dialer  websocket.Dialer
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	FrameSize int
}

func (q *Sequential) common() common {
	return common{Addr: q.Addr, Port: q.Port, Dialer: q.Dialer, Logger: q.Logger, Metrics: q.Metrics}
}

// Run returns one result per path, in input order.
func (q *Sequential) Run(ctx context.Context, paths []string) []FileResult {
	c := q.common()
	results := make([]FileResult, len(paths))
	if len(paths) == 0 {
		return results
	}

	started := time.Now()
	replies := make(chan string, len(paths))
	onMessage := func(m websocket.Message) {
		if !m.IsText() {
			return
		}
		select {
		case replies <- string(m.Data):
		default:
			c.logger().Warn("Unexpected server message", slog.String("text", string(m.Data)))
		}
	}

	sess, err := c.session(websocket.Never, onMessage, c.logger())
	if err == nil {
		defer sess.Close()
		err = sess.Connect(ctx)
	}
	if err != nil {
		for i, path := range paths {
			results[i] = c.fail(FileResult{Path: path}, c.logger().With(slog.String("file", path)), StageConnect, err, started)
		}
		return results
	}

	frameSize := q.FrameSize
	if frameSize <= 0 {
		frameSize = protocol.MaxFrameSize
	}

	for i, path := range paths {
		results[i] = q.sendFile(ctx, sess, path, frameSize, replies)
	}

	if err := sess.SendText(ctx, protocol.EndOfStream); err != nil && !errors.Is(err, websocket.ErrClosed) {
		c.logger().Warn("End-of-stream marker not sent", slog.String("error", err.Error()))
	}

	c.logger().Info("Sequential run finished",
		slog.Int("files", len(paths)),
		slog.Int("failed", Failed(results)),
	)
	return results
}

func (q *Sequential) sendFile(ctx context.Context, sess *websocket.Session, path string, frameSize int, replies <-chan string) FileResult {
	c := q.common()
	started := time.Now()
	logger := c.logger().With(slog.String("file", path), slog.String("session", sess.ID))
	res := FileResult{Path: path, SessionID: sess.ID}

	clip, err := audio.Load(path, audio.Requirements{})
	if err != nil {
		return c.fail(res, logger, StageDecode, err, started)
	}

	msg, err := protocol.EncodeBatch(clip.SampleRate, clip.Samples)
	if err != nil {
		return c.fail(res, logger, StageDecode, err, started)
	}
	logger.Debug("Decoded", slog.String("clip", clip.String()))
	frames := protocol.Split(msg, frameSize)
	logger.Info("Sending file", slog.Int("bytes", len(msg)), slog.Int("frames", len(frames)))

	if err := sess.SendBinary(ctx, frames); err != nil {
		return c.fail(res, logger, StageSend, err, started)
	}
	res.Frames = len(frames)
	res.Bytes = len(msg)

	select {
	case reply := <-replies:
		res.Reply = reply
		logger.Info("Transcription received", slog.String("text", reply))
		return c.succeed(res, logger, started)
	case <-sess.Done():
		select {
		case reply := <-replies:
			res.Reply = reply
			return c.succeed(res, logger, started)
		default:
		}
		term, _ := sess.Wait(ctx)
		res.Terminal = term
		err := term.Err
		if err == nil {
			err = fmt.Errorf("session ended by %s before a reply", term.Kind)
		}
		return c.fail(res, logger, StageWait, err, started)
	case <-ctx.Done():
		return c.fail(res, logger, StageWait, ctx.Err(), started)
	}
}
