package faultspace

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/microfi/emulator"
	_ "github.com/wnxd/microfi/emulator/arm64"
	"github.com/wnxd/microfi/internal/fakeemu"
)

func TestRegisterAreaLayout(t *testing.T) {
	area, err := NewRegisterArea("register", nil, testRegs)
	require.NoError(t, err)
	assert.Equal(t, uint64(4+2+8), area.Size())

	for reg, want := range map[emulator.Reg]uint64{regA: 0, regB: 4, regC: 6} {
		got, ok := area.RegisterOffset(reg)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := area.RegisterOffset(42)
	assert.False(t, ok)
}

func TestRegisterAreaDecode(t *testing.T) {
	area, err := NewRegisterArea("register", nil, testRegs)
	require.NoError(t, err)

	tests := []struct {
		offset uint64
		name   string
		nbyte  uint
		mask   byte
	}{
		{0, "a", 0, 0xFF},
		{3, "a", 3, 0xFF},
		{4, "b", 0, 0xFF},
		{5, "b", 1, 0x0F},
		{13, "c", 7, 0xFF},
	}
	for _, tt := range tests {
		e, err := area.Decode(tt.offset)
		require.NoError(t, err)
		re := e.(*RegisterElement)
		assert.Equal(t, tt.name, re.Register().Name)
		assert.Equal(t, tt.nbyte, re.Byte())
		assert.Equal(t, tt.mask, re.Mask())
	}

	_, err = area.Decode(14)
	assert.ErrorIs(t, err, ErrAddressInvalid)
}

func TestRegisterAreaEncodeTwelveBits(t *testing.T) {
	area, err := NewRegisterArea("register", nil, testRegs)
	require.NoError(t, err)

	groups, err := area.Encode(regB)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Len(t, groups[0xFF], 1)
	require.Len(t, groups[0x0F], 1)
	assert.Equal(t, uint64(4), groups[0xFF][0].Offset())
	assert.Equal(t, uint64(5), groups[0x0F][0].Offset())
}

func TestRegisterAreaEncodeMasksCoverWidth(t *testing.T) {
	for width := uint(1); width <= 64; width++ {
		area, err := NewRegisterArea("register", nil, []emulator.RegInfo{{Reg: regA, Name: "a", Width: width}})
		require.NoError(t, err)
		groups, err := area.Encode(regA)
		require.NoError(t, err)

		var covered uint64
		count := 0
		for mask, elems := range groups {
			for _, e := range elems {
				covered |= uint64(mask) << (8 * e.Byte())
				count++
			}
		}
		assert.Equal(t, int(byteCount(width)), count, "width %d", width)
		assert.Equal(t, uint64(1)<<width-1, covered, "width %d", width)
	}
}

func TestRegisterAreaEncodeView(t *testing.T) {
	area, err := NewRegisterArea("register", nil, testRegs)
	require.NoError(t, err)

	groups, err := area.EncodeView(regA, 4, 12)
	require.NoError(t, err)
	var got []struct {
		Mask   byte
		Offset uint64
	}
	for _, g := range groups {
		got = append(got, struct {
			Mask   byte
			Offset uint64
		}{g.Mask, g.Element.Offset()})
	}
	want := []struct {
		Mask   byte
		Offset uint64
	}{{0xF0, 0}, {0xFF, 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EncodeView mismatch (-want +got):\n%s", diff)
	}

	_, err = area.EncodeView(regB, 8, 8)
	assert.ErrorIs(t, err, ErrRegisterWidth)
	_, err = area.Encode(99)
	assert.ErrorIs(t, err, ErrRegisterNotFound)
}

func TestRegisterAreaRejectsBadTables(t *testing.T) {
	_, err := NewRegisterArea("register", nil, []emulator.RegInfo{{Reg: regA, Name: "v0", Width: 128}})
	assert.ErrorIs(t, err, ErrRegisterWidth)
	_, err = NewRegisterArea("register", nil, []emulator.RegInfo{{Reg: regA, Name: "a", Width: 8}, {Reg: regA, Name: "b", Width: 8}})
	assert.ErrorIs(t, err, ErrRegisterDuplicate)
}

func TestRegisterElementInject(t *testing.T) {
	emu := fakeemu.New(emulator.ARCH_UNKNOWN)
	require.NoError(t, emu.RegWrite(regC, 0x1122334455667788))
	require.NoError(t, emu.RegWrite(regB, 0xABC))
	area, err := NewRegisterArea("register", emu, testRegs)
	require.NoError(t, err)
	require.NoError(t, NewSpace().RegisterAreas(area))

	e, err := area.Decode(6 + 2)
	require.NoError(t, err)
	res, err := e.Inject(Invert)
	require.NoError(t, err)
	assert.Equal(t, InjectResult{Original: 0x66, Injected: 0x99}, res)
	v, err := emu.RegRead(regC)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1122334455997788), v)

	e, err = area.Decode(5)
	require.NoError(t, err)
	res, err = e.Inject(Set(0xFF))
	require.NoError(t, err)
	assert.Equal(t, InjectResult{Original: 0x0A, Injected: 0x0F}, res)
	v, err = emu.RegRead(regB)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFBC), v)
}

func TestArchRegisterArea(t *testing.T) {
	area, err := NewArchRegisterArea("register", nil, emulator.ARCH_ARM64)
	require.NoError(t, err)
	assert.Equal(t, uint64(33*8+3*4), area.Size())

	pc, err := area.Register("pc")
	require.NoError(t, err)
	off, ok := area.RegisterOffset(pc.Reg)
	require.True(t, ok)
	assert.Equal(t, uint64(32*8), off)

	_, err = NewArchRegisterArea("register", nil, emulator.ARCH_X86)
	assert.ErrorIs(t, err, emulator.ErrArchUnsupported)
}

func TestRegisterElementString(t *testing.T) {
	area, err := NewRegisterArea("register", nil, testRegs)
	require.NoError(t, err)
	require.NoError(t, NewSpace().RegisterAreas(NewMemoryArea("pad", nil, 0, 0x10), area))
	e, err := area.Decode(5)
	require.NoError(t, err)
	assert.Equal(t, "{ RegisterElement 'b' at byte 0x1 (mapped @ 0x10+0x5 ->0x15) }", e.String())
}
