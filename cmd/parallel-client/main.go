// Command parallel-client transcribes several WAV files at once, opening a
// separate connection for each file.
//
// Usage:
//
//	parallel-client --addr localhost --port 6006 foo.wav bar.wav 8kHz.wav
//
// Files must be mono 16-bit PCM at any sample rate. Start the server first.
package main

import (
	"os"

	"github.com/raihanakbr/asr-streaming-clients/internal/cli"
	"github.com/raihanakbr/asr-streaming-clients/internal/config"
	"github.com/raihanakbr/asr-streaming-clients/internal/sender"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop, env, err := cli.Setup("parallel-client", "file.wav [file.wav...]", func(f *config.Flags) { f.Batch() })
	if err != nil {
		cli.Fatal(err)
	}
	defer stop()

	p := &sender.Parallel{
		Addr:        env.Config.Server.Addr,
		Port:        env.Config.Server.Port,
		Logger:      env.Logger,
		Metrics:     env.Metrics,
		Concurrency: env.Config.Batch.Concurrency,
	}
	return cli.Report(env.Logger, p.Run(ctx, env.Args))
}
