package faultspace

import (
	"fmt"
	"io"
	"math"

	"github.com/wnxd/microfi/emulator"
)

// MemoryArea maps size bytes of target memory starting at guest address
// base. Element offsets are relative to base.
type MemoryArea struct {
	BaseArea
	mem  emulator.Memory
	base uint64
	size uint64
}

type MemoryElement struct {
	area   *MemoryArea
	offset uint64
}

func NewMemoryArea(name string, mem emulator.Memory, base, size uint64) *MemoryArea {
	return &MemoryArea{
		BaseArea: NewBaseArea(name),
		mem:      mem,
		base:     base,
		size:     size,
	}
}

func (a *MemoryArea) Size() uint64 {
	return a.size
}

func (a *MemoryArea) Base() uint64 {
	return a.base
}

func (a *MemoryArea) Memory() emulator.Memory {
	return a.mem
}

func (a *MemoryArea) Close() error {
	if c, ok := a.mem.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (a *MemoryArea) Decode(offset uint64) (Element, error) {
	if offset >= a.size {
		return nil, fmt.Errorf("%w: %#x beyond area %q", ErrAddressInvalid, offset, a.Name())
	}
	return &MemoryElement{area: a, offset: offset}, nil
}

// Encode translates the guest range [from, to) into elements, keeping only
// the addresses accepted by keep. Addresses outside the area are skipped.
func (a *MemoryArea) Encode(from, to uint64, keep func(addr uint64) bool) []*MemoryElement {
	end := a.base + a.size
	if end < a.base {
		end = math.MaxUint64
	}
	from, to = max(from, a.base), min(to, end)
	var elems []*MemoryElement
	for addr := from; addr < to; addr++ {
		if keep == nil || keep(addr) {
			elems = append(elems, &MemoryElement{area: a, offset: addr - a.base})
		}
	}
	return elems
}

func (e *MemoryElement) Area() Area {
	return e.area
}

func (e *MemoryElement) Offset() uint64 {
	return e.offset
}

func (e *MemoryElement) Address() uint64 {
	return e.area.Offset() + e.offset
}

func (e *MemoryElement) GuestAddress() uint64 {
	return e.area.base + e.offset
}

func (e *MemoryElement) Inject(fn Injector) (InjectResult, error) {
	if e.area.mem == nil {
		return InjectResult{}, ErrNoBackend
	}
	ptr := emulator.ToPointer(e.area.mem, e.GuestAddress())
	original, err := ptr.ReadByte()
	if err != nil {
		return InjectResult{}, err
	}
	injected := fn(original)
	if err := ptr.WriteByte(injected); err != nil {
		return InjectResult{}, err
	}
	return InjectResult{Original: original, Injected: injected}, nil
}

func (e *MemoryElement) String() string {
	return fmt.Sprintf("{ MemoryElement for addr %#x (mapped at=%#x) }", e.GuestAddress(), e.Address())
}
