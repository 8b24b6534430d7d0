package sender

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raihanakbr/asr-streaming-clients/internal/audio"
	"github.com/raihanakbr/asr-streaming-clients/internal/metrics"
	"github.com/raihanakbr/asr-streaming-clients/internal/protocol"
	"github.com/raihanakbr/asr-streaming-clients/internal/websocket"
)

// Parallel sends each file whole on its own connection. Files are independent:
// a failure in one never stops the others.
type Parallel struct {
	Addr    string
	Port    int
	Dialer  websocket.Dialer
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Concurrency bounds the number of files in flight; 0 runs all at once.
	Concurrency int
	// FrameSize defaults to protocol.MaxFrameSize.
	FrameSize int
}

// Run returns one result per path, in input order.
func (p *Parallel) Run(ctx context.Context, paths []string) []FileResult {
	results := make([]FileResult, len(paths))
	if len(paths) == 0 {
		return results
	}

	limit := p.Concurrency
	if limit <= 0 || limit > len(paths) {
		limit = len(paths)
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results[i] = p.sendFile(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	p.common().logger().Info("Batch finished",
		slog.Int("files", len(paths)),
		slog.Int("failed", Failed(results)),
	)
	return results
}

func (p *Parallel) common() common {
	return common{Addr: p.Addr, Port: p.Port, Dialer: p.Dialer, Logger: p.Logger, Metrics: p.Metrics}
}

func (p *Parallel) sendFile(ctx context.Context, path string) FileResult {
	c := p.common()
	started := time.Now()
	logger := c.logger().With(slog.String("file", path))
	res := FileResult{Path: path}

	if err := ctx.Err(); err != nil {
		return c.fail(res, logger, StageConnect, err, started)
	}

	clip, err := audio.Load(path, audio.Requirements{})
	if err != nil {
		return c.fail(res, logger, StageDecode, err, started)
	}

	frameSize := p.FrameSize
	if frameSize <= 0 {
		frameSize = protocol.MaxFrameSize
	}
	msg, err := protocol.EncodeBatch(clip.SampleRate, clip.Samples)
	if err != nil {
		return c.fail(res, logger, StageDecode, err, started)
	}
	logger.Debug("Decoded", slog.String("clip", clip.String()))
	frames := protocol.Split(msg, frameSize)

	sess, err := c.session(websocket.AnyMessage, nil, logger)
	if err != nil {
		return c.fail(res, logger, StageConnect, err, started)
	}
	defer sess.Close()
	res.SessionID = sess.ID

	if err := sess.Connect(ctx); err != nil {
		return c.fail(res, logger, StageConnect, err, started)
	}

	logger.Info("Sending file",
		slog.Int("sample_rate", clip.SampleRate),
		slog.Duration("duration", clip.Duration()),
		slog.Int("bytes", len(msg)),
		slog.Int("frames", len(frames)),
	)
	if err := sess.SendBinary(ctx, frames); err != nil && !errors.Is(err, websocket.ErrClosed) {
		return c.fail(res, logger, StageSend, err, started)
	}
	res.Frames = len(frames)
	res.Bytes = len(msg)

	term, err := awaitCompletion(ctx, sess)
	res.Terminal = term
	if err != nil {
		return c.fail(res, logger, StageWait, err, started)
	}
	res.Reply = string(term.Message)
	if res.Reply != "" {
		logger.Info("Transcription received", slog.String("text", res.Reply))
	}
	return c.succeed(res, logger, started)
}
