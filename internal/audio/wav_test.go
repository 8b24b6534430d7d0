package audio_test

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raihanakbr/asr-streaming-clients/internal/audio"
	"github.com/raihanakbr/asr-streaming-clients/internal/audio/audiotest"
)

func TestLoadAndConvertExtremes(t *testing.T) {
	path := audiotest.Write(t, t.TempDir(), audiotest.Mono16("extremes.wav", 8000, []int{-32768, 0, 32767}))

	clip, err := audio.Load(path, audio.Requirements{})
	require.NoError(t, err)
	assert.Equal(t, 8000, clip.SampleRate)
	assert.Equal(t, []int16{-32768, 0, 32767}, clip.Samples)

	floats := audio.Normalize(clip.Samples)
	require.Len(t, floats, 3)
	assert.Equal(t, float32(-1.0), floats[0])
	assert.Equal(t, float32(0.0), floats[1])
	assert.InDelta(t, 0.99997, floats[2], 1e-5)

	wire := audio.Float32LE(clip.Samples)
	require.Len(t, wire, 12)
	for i, want := range floats {
		got := math.Float32frombits(binary.LittleEndian.Uint32(wire[i*4:]))
		assert.Equal(t, want, got)
	}
}

func TestPCM16LE(t *testing.T) {
	raw := audio.PCM16LE([]int16{1, -1, 256})
	assert.Equal(t, []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x01}, raw)
}

func TestLoadRejectsUnsupportedFormats(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		fixture audiotest.Fixture
		req     audio.Requirements
	}{
		{
			name: "stereo",
			fixture: audiotest.Fixture{
				Name: "stereo.wav", SampleRate: 16000, BitDepth: 16, Channels: 2,
				Samples: []int{1, 2, 3, 4},
			},
		},
		{
			name: "8-bit",
			fixture: audiotest.Fixture{
				Name: "eight.wav", SampleRate: 16000, BitDepth: 8, Channels: 1,
				Samples: []int{120, 128, 130},
			},
		},
		{
			name:    "wrong sample rate",
			fixture: audiotest.Mono16("8k.wav", 8000, []int{1, 2, 3}),
			req:     audio.Requirements{SampleRate: 16000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := audiotest.Write(t, dir, tt.fixture)
			_, err := audio.Load(path, tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, audio.ErrUnsupportedFormat), "got %v", err)
		})
	}
}

func TestLoadRejectsNonWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a riff container"), 0o644))

	_, err := audio.Load(path, audio.Requirements{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, audio.ErrInvalidFile), "got %v", err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := audio.Load(filepath.Join(t.TempDir(), "missing.wav"), audio.Requirements{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
}

func TestClipDuration(t *testing.T) {
	clip := &audio.Clip{SampleRate: 16000, Samples: make([]int16, 24000)}
	assert.Equal(t, 1500*time.Millisecond, clip.Duration())

	clip.Path = "a.wav"
	assert.Equal(t, "a.wav (16000 Hz, 24000 samples)", clip.String())
}
