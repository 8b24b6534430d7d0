// Package protocol implements the binary framing used by the recognition
// server: the length-prefixed float32 message for whole-file transcription
// and the fixed-size sample windows for paced streaming.
package protocol
