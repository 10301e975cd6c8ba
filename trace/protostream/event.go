package protostream

import (
	"fmt"

	"github.com/wnxd/microfi/trace"
	"google.golang.org/protobuf/encoding/protowire"
)

// Trace_Event field numbers.
const (
	fieldIP         protowire.Number = 1
	fieldMemAddr    protowire.Number = 2
	fieldWidth      protowire.Number = 3
	fieldAccessType protowire.Number = 4
)

const (
	accessRead  = 1
	accessWrite = 2
)

// MAX_ACCESS_WIDTH bounds the bytes of a single memory access record.
const MAX_ACCESS_WIDTH = 4096

// Event is one record of a trace stream. Records without a memory address
// are instructions, the others are accesses made by the preceding one.
type Event struct {
	IP      uint64
	HasMem  bool
	MemAddr uint64
	Width   uint32
	Access  trace.AccessType
}

func Instruction(ip uint64) Event {
	return Event{IP: ip}
}

func Access(ip, addr uint64, width uint32, access trace.AccessType) Event {
	return Event{IP: ip, HasMem: true, MemAddr: addr, Width: width, Access: access}
}

func (ev Event) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldIP, protowire.VarintType)
	b = protowire.AppendVarint(b, ev.IP)
	if !ev.HasMem {
		return b
	}
	b = protowire.AppendTag(b, fieldMemAddr, protowire.VarintType)
	b = protowire.AppendVarint(b, ev.MemAddr)
	b = protowire.AppendTag(b, fieldWidth, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ev.Width))
	access := uint64(accessRead)
	if ev.Access == trace.ACCESS_WRITE {
		access = accessWrite
	}
	b = protowire.AppendTag(b, fieldAccessType, protowire.VarintType)
	return protowire.AppendVarint(b, access)
}

func (ev *Event) Unmarshal(b []byte) error {
	*ev = Event{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case fieldIP:
			ev.IP = v
		case fieldMemAddr:
			ev.MemAddr, ev.HasMem = v, true
		case fieldWidth:
			if v > MAX_ACCESS_WIDTH {
				return fmt.Errorf("access width %d exceeds %d", v, MAX_ACCESS_WIDTH)
			}
			ev.Width = uint32(v)
		case fieldAccessType:
			switch v {
			case accessRead:
				ev.Access = trace.ACCESS_READ
			case accessWrite:
				ev.Access = trace.ACCESS_WRITE
			default:
				return fmt.Errorf("access type %d unsupported", v)
			}
		}
	}
	return nil
}
