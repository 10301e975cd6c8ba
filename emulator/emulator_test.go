package emulator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/microfi/emulator"
	"github.com/wnxd/microfi/emulator/arm"
	"github.com/wnxd/microfi/emulator/arm64"
	"github.com/wnxd/microfi/internal/fakeemu"
)

func TestParseArch(t *testing.T) {
	for _, tt := range []struct {
		name string
		arch emulator.Arch
	}{
		{"arm", emulator.ARCH_ARM},
		{" ARM64 ", emulator.ARCH_ARM64},
		{"x86_64", emulator.ARCH_X86_64},
	} {
		arch, err := emulator.ParseArch(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.arch, arch)
	}
	_, err := emulator.ParseArch("unknown")
	assert.ErrorIs(t, err, emulator.ErrArchUnsupported)
	assert.Equal(t, "arm64", emulator.ARCH_ARM64.String())
	assert.Equal(t, "unknown", emulator.Arch(99).String())
}

func bytesOf(regs []emulator.RegInfo) (n uint) {
	for _, r := range regs {
		n += (r.Width + 7) / 8
	}
	return
}

func TestRegisters(t *testing.T) {
	regs, err := emulator.Registers(emulator.ARCH_ARM)
	require.NoError(t, err)
	require.Len(t, regs, 18)
	assert.Equal(t, emulator.RegInfo{Reg: arm.ARM_REG_R0, Name: "r0", Width: 32}, regs[0])
	assert.Equal(t, uint(72), bytesOf(regs))

	regs, err = emulator.Registers(emulator.ARCH_ARM64)
	require.NoError(t, err)
	require.Len(t, regs, 36)
	assert.Equal(t, "fp", regs[29].Name)
	assert.Equal(t, arm64.ARM64_REG_NZCV, regs[33].Reg)
	assert.Equal(t, uint(276), bytesOf(regs))

	regs[0].Name = "changed"
	again, _ := emulator.Registers(emulator.ARCH_ARM64)
	assert.Equal(t, "x0", again[0].Name)

	assert.False(t, emulator.RegisterArch(emulator.ARCH_ARM, nil))
	_, err = emulator.Registers(emulator.ARCH_X86)
	assert.ErrorIs(t, err, emulator.ErrArchUnsupported)
}

func TestPointer(t *testing.T) {
	emu := fakeemu.New(emulator.ARCH_ARM)
	p := emulator.ToPointer(emu, 0x1000).Add(2)
	assert.Equal(t, uint64(0x1002), p.Address())

	require.NoError(t, p.WriteByte(0xab))
	b, err := p.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xab), b)

	require.NoError(t, p.Add(1).MemWrite([]byte{1, 2}))
	data, err := emulator.ToPointer(emu, 0x1002).MemRead(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xab, 1, 2}, data)
}
