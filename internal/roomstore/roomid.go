// internal/roomstore/roomid.go
package roomstore

import (
	"crypto/rand"
	"strings"
	"time"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newRoomID mints a shareable code like "7KQ2-M9XD": the first group comes
// from random bits alone, the second mixes random bits with the current time
// so two ids minted in the same instant still diverge. Callers check the
// result against the live table and re-mint on the (unlikely) collision.
func newRoomID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	now := time.Now().UnixNano()

	var b strings.Builder
	b.Grow(9)
	for i := 0; i < 4; i++ {
		b.WriteByte(codeAlphabet[int(buf[i])%len(codeAlphabet)])
	}
	b.WriteByte('-')
	for i := 4; i < 8; i++ {
		mixed := (int64(buf[i]) + (now >> (8 * (i - 4)))) % int64(len(codeAlphabet))
		b.WriteByte(codeAlphabet[mixed])
	}
	return b.String()
}
