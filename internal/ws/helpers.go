package ws

import (
	"crypto/rand"
	"encoding/hex"
)

// newConnID returns a random identifier used to correlate a websocket
// connection across logs and lifecycle events.
func newConnID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "conn-unknown"
	}
	return "conn-" + hex.EncodeToString(buf)
}
