package audio

import (
	"encoding/binary"
	"math"
)

// Scale maps a signed 16-bit sample into [-1.0, 1.0).
const Scale = 32768.0

func Normalize(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / Scale
	}
	return out
}

// Float32LE returns the normalized samples as little-endian IEEE-754 floats,
// four bytes per sample.
func Float32LE(samples []int16) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(s)/Scale))
	}
	return out
}

// PCM16LE returns the raw samples, two bytes per sample.
func PCM16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
