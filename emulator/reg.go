package emulator

import (
	"slices"
	"sync"
)

type Reg int

// RegInfo describes one architectural register. Width is in bits.
type RegInfo struct {
	Reg   Reg
	Name  string
	Width uint
}

var (
	regMu  sync.RWMutex
	regMap = make(map[Arch][]RegInfo)
)

func RegisterArch(arch Arch, regs []RegInfo) bool {
	regMu.Lock()
	defer regMu.Unlock()
	if _, ok := regMap[arch]; ok {
		return false
	}
	regMap[arch] = slices.Clone(regs)
	return true
}

func Registers(arch Arch) ([]RegInfo, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	if regs, ok := regMap[arch]; ok {
		return slices.Clone(regs), nil
	}
	return nil, ErrArchUnsupported
}
