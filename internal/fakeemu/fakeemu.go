// Package fakeemu provides a map-backed emulator.Emulator for tests and
// offline tooling.
package fakeemu

import (
	"sync"

	"github.com/wnxd/microfi/emulator"
)

type Emulator struct {
	arch emulator.Arch
	mu   sync.Mutex
	mem  map[uint64]byte
	regs map[emulator.Reg]uint64

	closed bool
}

func New(arch emulator.Arch) *Emulator {
	return &Emulator{
		arch: arch,
		mem:  make(map[uint64]byte),
		regs: make(map[emulator.Reg]uint64),
	}
}

func (e *Emulator) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

func (e *Emulator) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Emulator) Arch() emulator.Arch {
	return e.arch
}

func (e *Emulator) ByteOrder() emulator.ByteOrder {
	return emulator.BO_LITTLE_ENDIAN
}

func (e *Emulator) MemRead(addr, size uint64) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	data := make([]byte, size)
	for i := range data {
		data[i] = e.mem[addr+uint64(i)]
	}
	return data, nil
}

func (e *Emulator) MemWrite(addr uint64, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, b := range data {
		e.mem[addr+uint64(i)] = b
	}
	return nil
}

func (e *Emulator) RegRead(reg emulator.Reg) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.regs[reg], nil
}

func (e *Emulator) RegWrite(reg emulator.Reg, value uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.regs[reg] = value
	return nil
}
