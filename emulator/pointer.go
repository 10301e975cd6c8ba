package emulator

type Pointer struct {
	mem  Memory
	addr uint64
}

func ToPointer(mem Memory, addr uint64) Pointer {
	return Pointer{mem, addr}
}

func (p Pointer) Address() uint64 {
	return p.addr
}

func (p Pointer) Add(offset uint64) Pointer {
	return Pointer{p.mem, p.addr + offset}
}

func (p Pointer) MemRead(size uint64) ([]byte, error) {
	return p.mem.MemRead(p.addr, size)
}

func (p Pointer) MemWrite(data []byte) error {
	return p.mem.MemWrite(p.addr, data)
}

func (p Pointer) ReadByte() (byte, error) {
	data, err := p.MemRead(1)
	if err != nil {
		return 0, err
	} else if len(data) != 1 {
		return 0, ErrAddressInvalid
	}
	return data[0], nil
}

func (p Pointer) WriteByte(b byte) error {
	return p.MemWrite([]byte{b})
}
