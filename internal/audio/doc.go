// Package audio loads mono 16-bit PCM WAV files and converts their samples
// into the byte layouts the recognition server accepts.
package audio
