package arm64

import (
	"fmt"

	"github.com/wnxd/microfi/emulator"
)

const (
	ARM64_REG_X0 emulator.Reg = iota + 1
)

const (
	ARM64_REG_X29 = ARM64_REG_X0 + 29 + iota
	ARM64_REG_X30
	ARM64_REG_SP
	ARM64_REG_PC
	ARM64_REG_NZCV
	ARM64_REG_FPCR
	ARM64_REG_FPSR

	ARM64_REG_FP = ARM64_REG_X29
	ARM64_REG_LR = ARM64_REG_X30
)

func registers() []emulator.RegInfo {
	regs := make([]emulator.RegInfo, 0, ARM64_REG_FPSR)
	for r := ARM64_REG_X0; r < ARM64_REG_X29; r++ {
		regs = append(regs, emulator.RegInfo{Reg: r, Name: fmt.Sprintf("x%d", r-ARM64_REG_X0), Width: 64})
	}
	return append(regs,
		emulator.RegInfo{Reg: ARM64_REG_FP, Name: "fp", Width: 64},
		emulator.RegInfo{Reg: ARM64_REG_LR, Name: "lr", Width: 64},
		emulator.RegInfo{Reg: ARM64_REG_SP, Name: "sp", Width: 64},
		emulator.RegInfo{Reg: ARM64_REG_PC, Name: "pc", Width: 64},
		emulator.RegInfo{Reg: ARM64_REG_NZCV, Name: "nzcv", Width: 32},
		emulator.RegInfo{Reg: ARM64_REG_FPCR, Name: "fpcr", Width: 32},
		emulator.RegInfo{Reg: ARM64_REG_FPSR, Name: "fpsr", Width: 32},
	)
}

var _ = emulator.RegisterArch(emulator.ARCH_ARM64, registers())
