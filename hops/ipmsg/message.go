package ipmsg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wnxd/microfi/hops"
	"github.com/wnxd/microfi/trace"
	"google.golang.org/protobuf/encoding/protowire"
)

// InjectionPointMessage field numbers.
const (
	fieldCheckpointID        protowire.Number = 1
	fieldTargetTracePosition protowire.Number = 2
	fieldCosts               protowire.Number = 3
	fieldHops                protowire.Number = 4
)

// Hops field numbers.
const (
	fieldAddress    protowire.Number = 1
	fieldAccessType protowire.Number = 2
)

type AccessType uint64

const (
	ACCESS_EXECUTE AccessType = iota
	ACCESS_READ
	ACCESS_WRITE
)

var ErrMessageInvalid = errors.New("injection point message invalid")

type Hop struct {
	Address    uint64
	AccessType AccessType
}

type Message struct {
	HasCheckpoint       bool
	CheckpointID        uint64
	TargetTracePosition uint64
	Costs               uint64
	Hops                []Hop
}

// FromTarget converts a planner target. Only instruction and memory
// accesses can be armed as hops.
func FromTarget(t hops.Target) (Message, error) {
	m := Message{
		HasCheckpoint:       t.HasCheckpoint,
		CheckpointID:        t.CheckpointID,
		TargetTracePosition: t.Position,
		Costs:               t.Costs,
		Hops:                make([]Hop, len(t.Hops)),
	}
	for i, ev := range t.Hops {
		var at AccessType
		switch ev.Access {
		case trace.ACCESS_EXECUTE:
			at = ACCESS_EXECUTE
		case trace.ACCESS_READ:
			at = ACCESS_READ
		case trace.ACCESS_WRITE:
			at = ACCESS_WRITE
		default:
			return Message{}, fmt.Errorf("%w: hop %d: %s not allowed", ErrMessageInvalid, i, ev.Access)
		}
		m.Hops[i] = Hop{Address: ev.Addr, AccessType: at}
	}
	return m, nil
}

// Target converts the message back into a planner target.
func (m Message) Target() (hops.Target, error) {
	t := hops.Target{
		HasCheckpoint: m.HasCheckpoint,
		CheckpointID:  m.CheckpointID,
		Position:      m.TargetTracePosition,
		Costs:         m.Costs,
		Hops:          make([]trace.Event, len(m.Hops)),
	}
	for i, h := range m.Hops {
		var access trace.AccessType
		switch h.AccessType {
		case ACCESS_EXECUTE:
			access = trace.ACCESS_EXECUTE
		case ACCESS_READ:
			access = trace.ACCESS_READ
		case ACCESS_WRITE:
			access = trace.ACCESS_WRITE
		default:
			return hops.Target{}, fmt.Errorf("%w: hop %d: access type %d", ErrMessageInvalid, i, h.AccessType)
		}
		t.Hops[i] = trace.Event{Addr: h.Address, Access: access}
	}
	return t, nil
}

var accessPrefix = [...]byte{ACCESS_EXECUTE: 'X', ACCESS_READ: 'R', ACCESS_WRITE: 'W'}

// String renders the hops as "C<id> X<addr> R<addr> W<addr>" with hex
// addresses, the checkpoint first when there is one.
func (m Message) String() string {
	var sb strings.Builder
	if m.HasCheckpoint {
		sb.WriteByte('C')
		sb.WriteString(strconv.FormatUint(m.CheckpointID, 10))
	}
	for _, h := range m.Hops {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		if h.AccessType <= ACCESS_WRITE {
			sb.WriteByte(accessPrefix[h.AccessType])
		}
		sb.WriteString(strconv.FormatUint(h.Address, 16))
	}
	return sb.String()
}

func (m Message) Marshal() []byte {
	var b []byte
	if m.HasCheckpoint {
		b = protowire.AppendTag(b, fieldCheckpointID, protowire.VarintType)
		b = protowire.AppendVarint(b, m.CheckpointID)
	}
	b = protowire.AppendTag(b, fieldTargetTracePosition, protowire.VarintType)
	b = protowire.AppendVarint(b, m.TargetTracePosition)
	b = protowire.AppendTag(b, fieldCosts, protowire.VarintType)
	b = protowire.AppendVarint(b, m.Costs)
	for _, h := range m.Hops {
		var hb []byte
		hb = protowire.AppendTag(hb, fieldAddress, protowire.VarintType)
		hb = protowire.AppendVarint(hb, h.Address)
		hb = protowire.AppendTag(hb, fieldAccessType, protowire.VarintType)
		hb = protowire.AppendVarint(hb, uint64(h.AccessType))
		b = protowire.AppendTag(b, fieldHops, protowire.BytesType)
		b = protowire.AppendBytes(b, hb)
	}
	return b
}

func (m *Message) Unmarshal(b []byte) error {
	*m = Message{}
	return consumeFields(b, func(num protowire.Number, v uint64, nested []byte) error {
		switch num {
		case fieldCheckpointID:
			m.CheckpointID, m.HasCheckpoint = v, true
		case fieldTargetTracePosition:
			m.TargetTracePosition = v
		case fieldCosts:
			m.Costs = v
		case fieldHops:
			if nested == nil {
				return fmt.Errorf("%w: hops must be a message", ErrMessageInvalid)
			}
			var h Hop
			err := consumeFields(nested, func(num protowire.Number, v uint64, _ []byte) error {
				switch num {
				case fieldAddress:
					h.Address = v
				case fieldAccessType:
					if v > uint64(ACCESS_WRITE) {
						return fmt.Errorf("%w: access type %d", ErrMessageInvalid, v)
					}
					h.AccessType = AccessType(v)
				}
				return nil
			})
			if err != nil {
				return err
			}
			m.Hops = append(m.Hops, h)
		}
		return nil
	})
}

// consumeFields walks the varint and bytes fields of b, skipping any other
// wire type.
func consumeFields(b []byte, fn func(num protowire.Number, v uint64, nested []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMessageInvalid, protowire.ParseError(n))
		}
		b = b[n:]
		var (
			v      uint64
			nested []byte
		)
		switch typ {
		case protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			nested, n = protowire.ConsumeBytes(b)
			if nested == nil && n >= 0 {
				nested = []byte{}
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n >= 0 {
				b = b[n:]
				continue
			}
		}
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMessageInvalid, protowire.ParseError(n))
		}
		b = b[n:]
		if err := fn(num, v, nested); err != nil {
			return err
		}
	}
	return nil
}

func (at AccessType) String() string {
	switch at {
	case ACCESS_EXECUTE:
		return "EXECUTE"
	case ACCESS_READ:
		return "READ"
	case ACCESS_WRITE:
		return "WRITE"
	}
	return fmt.Sprintf("AccessType(%d)", uint64(at))
}
