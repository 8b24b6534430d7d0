// Package audiotest writes WAV fixtures for tests.
package audiotest

import (
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type Fixture struct {
	Name       string
	SampleRate int
	BitDepth   int
	Channels   int
	// Samples are interleaved when Channels > 1.
	Samples []int
}

// Mono16 is a mono 16-bit fixture.
func Mono16(name string, sampleRate int, samples []int) Fixture {
	return Fixture{Name: name, SampleRate: sampleRate, BitDepth: 16, Channels: 1, Samples: samples}
}

// Ramp returns n samples cycling through the int16 range.
func Ramp(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = (i*37)%65536 - 32768
	}
	return out
}

// Write encodes f into dir and returns the file path.
func Write(t testing.TB, dir string, f Fixture) string {
	t.Helper()

	path := filepath.Join(dir, f.Name)
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer out.Close()

	enc := wav.NewEncoder(out, f.SampleRate, f.BitDepth, f.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		Data:           f.Samples,
		SourceBitDepth: f.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finalize fixture: %v", err)
	}
	return path
}
