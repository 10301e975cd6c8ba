package config

import (
	"errors"
	"fmt"

	"github.com/wnxd/microfi/emulator"
	_ "github.com/wnxd/microfi/emulator/arm"
	_ "github.com/wnxd/microfi/emulator/arm64"
	"github.com/wnxd/microfi/faultspace"
)

// memoryView hides the Closer of a shared emulator so that only one area
// owns it.
type memoryView struct {
	emulator.Memory
}

// Build lays out the fault space on emu: the register file of the configured
// architecture first, then the memory areas in file order. The space takes
// ownership of emu; on error emu is closed.
func (f FaultSpaceConfig) Build(emu emulator.Emulator, opts ...faultspace.Option) (_ *faultspace.Space, err error) {
	defer func() {
		if err != nil {
			err = errors.Join(err, emu.Close())
		}
	}()
	var areas []faultspace.Area
	if f.Arch != "" {
		arch, err := emulator.ParseArch(f.Arch)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", err, f.Arch)
		}
		if arch != emu.Arch() {
			return nil, fmt.Errorf("%w: configured %s, target is %s", emulator.ErrArchMismatch, arch, emu.Arch())
		}
		regs, err := faultspace.NewArchRegisterArea("registers", emu, arch, opts...)
		if err != nil {
			return nil, err
		}
		areas = append(areas, regs)
	}
	for _, m := range f.Memory {
		var mem emulator.Memory = memoryView{emu}
		if len(areas) == 0 {
			mem = emu
		}
		areas = append(areas, faultspace.NewMemoryArea(m.Name, mem, m.Base, m.Size))
	}

	space := faultspace.NewSpace(opts...)
	if err := space.RegisterAreas(areas...); err != nil {
		return nil, err
	}
	return space, nil
}
