package audio

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedFormat is returned for files that are not mono 16-bit PCM
	// or that do not match a required sample rate.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrInvalidFile       = errors.New("invalid WAV file")
)

// Requirements narrows what Load accepts beyond mono 16-bit PCM.
// A zero SampleRate accepts any rate.
type Requirements struct {
	SampleRate int
}

// Clip is a fully decoded WAV file.
type Clip struct {
	Path       string
	SampleRate int
	Samples    []int16
}

// Duration is the length of the clip at its own sample rate.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Load decodes the whole file into memory. Format checks run before any
// sample is read so that a bad file fails fast.
func Load(path string, req Requirements) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open wav")
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return nil, errors.Wrapf(ErrInvalidFile, "%s: %v", path, err)
		}
		return nil, errors.Wrap(ErrInvalidFile, path)
	}

	if d.NumChans != 1 {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s: %d channels, only mono is supported", path, d.NumChans)
	}
	if d.BitDepth != 16 {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s: %d-bit samples, only 16-bit is supported", path, d.BitDepth)
	}
	if req.SampleRate != 0 && int(d.SampleRate) != req.SampleRate {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s: %d Hz, only %d Hz is supported", path, d.SampleRate, req.SampleRate)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrapf(err, "read pcm from %s", path)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}

	return &Clip{
		Path:       path,
		SampleRate: int(d.SampleRate),
		Samples:    samples,
	}, nil
}

func (c *Clip) String() string {
	return fmt.Sprintf("%s (%d Hz, %d samples)", c.Path, c.SampleRate, len(c.Samples))
}
