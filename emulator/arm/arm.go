package arm

import (
	"fmt"

	"github.com/wnxd/microfi/emulator"
)

const (
	ARM_REG_R0 emulator.Reg = iota + 1
	ARM_REG_R1
	ARM_REG_R2
	ARM_REG_R3
	ARM_REG_R4
	ARM_REG_R5
	ARM_REG_R6
	ARM_REG_R7
	ARM_REG_R8
	ARM_REG_R9
	ARM_REG_R10
	ARM_REG_R11
	ARM_REG_R12
	ARM_REG_SP
	ARM_REG_LR
	ARM_REG_PC
	ARM_REG_CPSR
	ARM_REG_FPSCR
)

func registers() []emulator.RegInfo {
	regs := make([]emulator.RegInfo, 0, ARM_REG_FPSCR)
	for r := ARM_REG_R0; r <= ARM_REG_R12; r++ {
		regs = append(regs, emulator.RegInfo{Reg: r, Name: fmt.Sprintf("r%d", r-ARM_REG_R0), Width: 32})
	}
	return append(regs,
		emulator.RegInfo{Reg: ARM_REG_SP, Name: "sp", Width: 32},
		emulator.RegInfo{Reg: ARM_REG_LR, Name: "lr", Width: 32},
		emulator.RegInfo{Reg: ARM_REG_PC, Name: "pc", Width: 32},
		emulator.RegInfo{Reg: ARM_REG_CPSR, Name: "cpsr", Width: 32},
		emulator.RegInfo{Reg: ARM_REG_FPSCR, Name: "fpscr", Width: 32},
	)
}

var _ = emulator.RegisterArch(emulator.ARCH_ARM, registers())
