package cli

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raihanakbr/asr-streaming-clients/internal/sender"
)

func TestReportExitCode(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ok := []sender.FileResult{{Path: "a.wav", Reply: "hello"}}
	assert.Equal(t, 0, Report(logger, ok))
	assert.Contains(t, buf.String(), "hello")

	buf.Reset()
	mixed := append(ok, sender.FileResult{
		Path: "b.wav",
		Err:  &sender.StageError{Stage: sender.StageDecode, Err: errors.New("2 channels")},
	})
	assert.Equal(t, 1, Report(logger, mixed))
	assert.True(t, strings.Contains(buf.String(), "decode: 2 channels"))
}
