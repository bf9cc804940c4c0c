package broker

import "fmt"

// Kind classifies a broker-level error into one of the observable failure
// categories a client or game server connection can hit.
type Kind int

const (
	KindUnknown Kind = iota
	KindRegisterFail
	KindUserNotFound
	KindMultiLogin
	KindInvalidSocket
	KindPacketManipulation
	KindPacketReject
	KindInvalidPacket
	KindIncorrectPassword
	KindNoUsername
	KindNoPassword
	KindMapNotFound
	KindNPCNotFound
)

func (k Kind) String() string {
	switch k {
	case KindRegisterFail:
		return "register-fail"
	case KindUserNotFound:
		return "user-not-found"
	case KindMultiLogin:
		return "multi-login"
	case KindInvalidSocket:
		return "invalid-socket"
	case KindPacketManipulation:
		return "packet-manipulation"
	case KindPacketReject:
		return "packet-reject"
	case KindInvalidPacket:
		return "invalid-packet"
	case KindIncorrectPassword:
		return "incorrect-password"
	case KindNoUsername:
		return "no-username"
	case KindNoPassword:
		return "no-password"
	case KindMapNotFound:
		return "map-not-found"
	case KindNPCNotFound:
		return "npc-not-found"
	default:
		return "unknown"
	}
}

// Error is the broker's single error type. Lower-layer errors (pgx, tls,
// toml, jwt, framing) are wrapped underneath it via %w rather than modeled
// as their own Kind values.
type Error struct {
	Kind    Kind
	Num     int    // populated for KindPacketReject
	Message string // populated for KindPacketReject
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindPacketReject:
		return fmt.Sprintf("broker: packet rejected (%d): %s", e.Num, e.Message)
	default:
		if e.Err != nil {
			return fmt.Sprintf("broker: %s: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("broker: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// newErr builds an *Error of the given kind, optionally wrapping cause.
func newErr(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// rejectErr builds the KindPacketReject variant carrying a rejection
// number and human-readable message.
func rejectErr(num int, message string) *Error {
	return &Error{Kind: KindPacketReject, Num: num, Message: message}
}
