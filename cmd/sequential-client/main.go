// Command sequential-client transcribes several WAV files one after another
// over a single connection.
//
// Usage:
//
//	sequential-client --addr localhost --port 6006 foo.wav bar.wav
//
// Files must be mono 16-bit PCM at any sample rate. Start the server first.
package main

import (
	"os"

	"github.com/raihanakbr/asr-streaming-clients/internal/cli"
	"github.com/raihanakbr/asr-streaming-clients/internal/sender"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop, env, err := cli.Setup("sequential-client", "file.wav [file.wav...]", nil)
	if err != nil {
		cli.Fatal(err)
	}
	defer stop()

	q := &sender.Sequential{
		Addr:    env.Config.Server.Addr,
		Port:    env.Config.Server.Port,
		Logger:  env.Logger,
		Metrics: env.Metrics,
	}
	return cli.Report(env.Logger, q.Run(ctx, env.Args))
}
