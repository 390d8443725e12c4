package duplex

import (
	"fmt"

	"github.com/Suhaibinator/SBridge/pkg/host"
)

// Frame opcodes exposed to duplex handlers.
const (
	OpText   = 0x1
	OpBinary = 0x2
	OpClose  = 0x8
)

// NormalClosure is the close status sent when the peer started the closing handshake.
const NormalClosure = 1000

// OpcodeError reports an opcode or native message kind with no translation.
type OpcodeError struct {
	Opcode int
}

func (e *OpcodeError) Error() string {
	return fmt.Sprintf("duplex: unsupported opcode 0x%x", e.Opcode)
}

// KindOf translates an opcode to the host's message kind.
func KindOf(opcode int) (host.MessageKind, error) {
	switch opcode {
	case OpText:
		return host.MessageText, nil
	case OpBinary:
		return host.MessageBinary, nil
	case OpClose:
		return host.MessageClose, nil
	default:
		return 0, &OpcodeError{Opcode: opcode}
	}
}

// OpcodeOf translates a host message kind to an opcode.
func OpcodeOf(kind host.MessageKind) (int, error) {
	switch kind {
	case host.MessageText:
		return OpText, nil
	case host.MessageBinary:
		return OpBinary, nil
	case host.MessageClose:
		return OpClose, nil
	default:
		return 0, &OpcodeError{Opcode: int(kind)}
	}
}
