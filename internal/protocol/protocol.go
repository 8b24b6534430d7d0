package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/raihanakbr/asr-streaming-clients/internal/audio"
)

const (
	// MaxFrameSize is the largest binary frame sent for a batch message.
	MaxFrameSize = 1_000_000
	// HeaderSize covers the sample rate and payload length fields.
	HeaderSize = 8

	// EndOfStream is sent by the client after the last audio window.
	EndOfStream = "Done"
	// Completion is the server's acknowledgement that a stream is finished.
	Completion = "Done!"
)

var (
	ErrShortHeader = errors.New("batch header shorter than 8 bytes")
	// ErrTooLarge means a header field cannot hold the value.
	ErrTooLarge = errors.New("batch message too large")
)

// BatchPayloadLen returns the payload size of a batch message carrying n
// samples, or ErrTooLarge when it does not fit the 32-bit length field.
func BatchPayloadLen(n int) (int, error) {
	if n < 0 || uint64(n)*4 > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d samples exceed %d payload bytes", ErrTooLarge, n, uint32(math.MaxUint32))
	}
	return n * 4, nil
}

// EncodeBatch builds [sample_rate:u32 LE][payload_len:u32 LE][float32 LE samples].
func EncodeBatch(sampleRate int, samples []int16) ([]byte, error) {
	if sampleRate < 0 || uint64(sampleRate) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrTooLarge, sampleRate)
	}
	size, err := BatchPayloadLen(len(samples))
	if err != nil {
		return nil, err
	}
	msg := make([]byte, HeaderSize, HeaderSize+size)
	binary.LittleEndian.PutUint32(msg[0:4], uint32(sampleRate))
	binary.LittleEndian.PutUint32(msg[4:8], uint32(size))
	return append(msg, audio.Float32LE(samples)...), nil
}

// DecodeBatchHeader reads the header written by EncodeBatch.
func DecodeBatchHeader(msg []byte) (sampleRate, payloadLen int, err error) {
	if len(msg) < HeaderSize {
		return 0, 0, ErrShortHeader
	}
	return int(binary.LittleEndian.Uint32(msg[0:4])), int(binary.LittleEndian.Uint32(msg[4:8])), nil
}

// Split cuts msg into consecutive frames of at most limit bytes. The frames
// share msg's backing array.
func Split(msg []byte, limit int) [][]byte {
	if limit <= 0 {
		limit = MaxFrameSize
	}
	frames := make([][]byte, 0, (len(msg)+limit-1)/limit)
	for start := 0; start < len(msg); start += limit {
		end := min(start+limit, len(msg))
		frames = append(frames, msg[start:end])
	}
	return frames
}

// Encoding selects the sample layout of streamed windows.
type Encoding string

const (
	EncodingPCM16   Encoding = "pcm16"
	EncodingFloat32 Encoding = "float32"
)

func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(s)); e {
	case EncodingPCM16, EncodingFloat32:
		return e, nil
	case "":
		return EncodingPCM16, nil
	default:
		return "", fmt.Errorf("unknown encoding %q (want %s or %s)", s, EncodingPCM16, EncodingFloat32)
	}
}

// BytesPerSample is the wire width of one sample.
func (e Encoding) BytesPerSample() int {
	if e == EncodingFloat32 {
		return 4
	}
	return 2
}

// Encode serializes samples in this encoding.
func (e Encoding) Encode(samples []int16) []byte {
	if e == EncodingFloat32 {
		return audio.Float32LE(samples)
	}
	return audio.PCM16LE(samples)
}

// Windows splits samples into frames of samplesPerMessage samples each,
// the last one possibly shorter.
func Windows(samples []int16, samplesPerMessage int, enc Encoding) [][]byte {
	if samplesPerMessage <= 0 {
		return nil
	}
	return Split(enc.Encode(samples), samplesPerMessage*enc.BytesPerSample())
}

// WindowCount is ceil(samples / samplesPerMessage).
func WindowCount(samples, samplesPerMessage int) int {
	if samplesPerMessage <= 0 {
		return 0
	}
	return (samples + samplesPerMessage - 1) / samplesPerMessage
}
