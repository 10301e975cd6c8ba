package emulator

import (
	"io"
)

// Emulator is the part of a simulator or hardware debugger backend the
// fault space needs: byte-addressable memory and whole-register access.
type Emulator interface {
	io.Closer
	Arch() Arch
	ByteOrder() ByteOrder
	Memory
	RegisterContext
}
