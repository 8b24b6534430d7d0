package sender

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raihanakbr/asr-streaming-clients/internal/metrics"
	"github.com/raihanakbr/asr-streaming-clients/internal/websocket"
)

// Stage is the step at which a file's delivery failed.
type Stage string

const (
	StageDecode  Stage = "decode"
	StageConnect Stage = "connect"
	StageSend    Stage = "send"
	StageWait    Stage = "wait"
)

// StageError ties an error to the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FileResult is the outcome of delivering one file.
type FileResult struct {
	Path      string
	SessionID string
	Frames    int
	Bytes     int
	// Reply is the server text that ended the session (batch) or the last
	// informational text received before completion (streaming).
	Reply    string
	Terminal websocket.Terminal
	Elapsed  time.Duration
	Err      error
}

func (r FileResult) OK() bool {
	return r.Err == nil
}

// Failed counts results with an error.
func Failed(results []FileResult) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}

type common struct {
	Addr    string
	Port    int
	Dialer  websocket.Dialer
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (c common) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c common) session(complete websocket.CompletionFunc, onMessage func(websocket.Message), logger *slog.Logger) (*websocket.Session, error) {
	return websocket.NewSession(websocket.Options{
		Addr:      c.Addr,
		Port:      c.Port,
		Dialer:    c.Dialer,
		Complete:  complete,
		OnMessage: onMessage,
		Logger:    logger,
		Metrics:   c.Metrics,
	})
}

func (c common) fail(res FileResult, logger *slog.Logger, stage Stage, err error, started time.Time) FileResult {
	res.Err = &StageError{Stage: stage, Err: err}
	res.Elapsed = time.Since(started)
	c.Metrics.FileFailed(string(stage))
	logger.Error("File failed",
		slog.String("stage", string(stage)),
		slog.String("error", err.Error()),
	)
	return res
}

func (c common) succeed(res FileResult, logger *slog.Logger, started time.Time) FileResult {
	res.Elapsed = time.Since(started)
	c.Metrics.FileCompleted()
	logger.Info("File done",
		slog.Int("frames", res.Frames),
		slog.Int("bytes", res.Bytes),
		slog.Duration("elapsed", res.Elapsed),
		slog.String("terminal", string(res.Terminal.Kind)),
	)
	return res
}

// awaitCompletion waits for the session's terminal event and converts a
// non-completing one into an error.
func awaitCompletion(ctx context.Context, sess *websocket.Session) (websocket.Terminal, error) {
	term, err := sess.Wait(ctx)
	if err != nil {
		return term, err
	}
	if !term.Completed() {
		if term.Err != nil {
			return term, term.Err
		}
		return term, fmt.Errorf("session ended by %s before completion", term.Kind)
	}
	return term, nil
}
