package websocket

import "time"

// Connection defaults
const (
	DefaultAddr   = "localhost"
	DefaultPort   = 6006
	DefaultScheme = "ws"
	CloseReason   = "Done"

	// How long Close waits for the server to answer the close handshake.
	CloseGracePeriod = time.Second
	// Deadline for a single control frame write.
	ControlWriteTimeout = 10 * time.Second
)
