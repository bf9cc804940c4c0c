// Package constants collects the fixed limits and magic numbers the broker
// is built around, so they live in one place instead of scattered literals.
package constants

import "time"

// Version gate. A client is rejected only when it is strictly below the
// server on all three components — see DESIGN.md for why this is preserved
// even though it looks like a bug (it accepts a client ahead on any single
// axis).
const (
	AppMajor    = 1
	AppMinor    = 0
	AppRevision = 0
)

// Frame limits.
const (
	FrameHeaderSize  = 8 // length header, u64 little-endian
	MinFrameLength   = 1
	MaxFrameLength   = 8192
	MaxFramesPerTick = 25 // per connection, per dispatch pass
	MaxWritesPerPass = 25 // outbound frames flushed per write pass
)

// Buffer sizing.
const (
	InitialBufferCapacity = 16 * 1024 // 16 KiB inbound framing buffer
	ReadChunkSize         = 4 * 1024  // bytes read per socket read() call
	SendQueueShrinkAbove  = 100       // shrink outbound queue once capacity exceeds this
	SendQueueInitialCap   = 32
)

// Identifier pool.
const (
	ClientListenerToken = 0
	ServerListenerToken = 1
	FirstConnectionID   = 2
)

// Rotating signing key.
const (
	KeyAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789)(*&^%$#@!~"
	DefaultKeyLength = 64
	RotationInterval = 8 * time.Hour
)

// Reconnect code.
const (
	ReconnectCodeLength   = 32
	ReconnectCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Registration / login field limits.
const (
	MaxUsernameLength = 64
	MaxPasswordLength = 128
	MaxSpriteID       = 6 // sprite_id must be < this
)

// Directory paging.
const ServerListPageSize = 5

// EmailPattern is the accepted-email regex from spec.md §4.9.
const EmailPattern = `^([a-z0-9_+]([a-z0-9_+.]*[a-z0-9_+])?)@([a-z0-9]+([-.]{1}[a-z0-9]+)*\.[a-z]{2,6})`

// isNameAcceptable reports whether r may appear in a username.
func isNameAcceptable(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
	case r >= 'A' && r <= 'Z':
	case r >= '0' && r <= '9':
	case r == '_' || r == '-' || r == '.':
	default:
		return false
	}
	return true
}

// IsNameAcceptable is exported for use by validators and tests.
func IsNameAcceptable(r rune) bool { return isNameAcceptable(r) }

// isPasswordAcceptable reports whether r may appear in a password. Passwords
// accept a wider printable-ASCII set than usernames.
func isPasswordAcceptable(r rune) bool {
	return r >= 0x20 && r <= 0x7E
}

// IsPasswordAcceptable is exported for use by validators and tests.
func IsPasswordAcceptable(r rune) bool { return isPasswordAcceptable(r) }
