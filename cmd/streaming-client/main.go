// Command streaming-client simulates live capture by sending one WAV file in
// fixed-size windows at a fixed cadence.
//
// Usage:
//
//	streaming-client --addr localhost --port 6006 \
//	  --seconds-per-message 0.1 --samples-per-message 8000 foo.wav
//
// The file must be mono 16-bit PCM at 16 kHz. Start the server first.
package main

import (
	"log/slog"
	"os"

	"github.com/raihanakbr/asr-streaming-clients/internal/cli"
	"github.com/raihanakbr/asr-streaming-clients/internal/config"
	"github.com/raihanakbr/asr-streaming-clients/internal/sender"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop, env, err := cli.Setup("streaming-client", "file.wav", func(f *config.Flags) { f.Streaming() })
	if err != nil {
		cli.Fatal(err)
	}
	defer stop()

	if len(env.Args) > 1 {
		env.Logger.Warn("Only the first file is streamed", slog.Int("ignored", len(env.Args)-1))
	}

	s := &sender.Streaming{
		Addr:              env.Config.Server.Addr,
		Port:              env.Config.Server.Port,
		Logger:            env.Logger,
		Metrics:           env.Metrics,
		SamplesPerMessage: env.Config.Streaming.SamplesPerMessage,
		Interval:          env.Config.Streaming.Interval(),
		Encoding:          env.Config.Streaming.EncodingValue(),
	}
	res := s.Run(ctx, env.Args[0])
	return cli.Report(env.Logger, []sender.FileResult{res})
}
