package faultspace

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/microfi/emulator"
	"github.com/wnxd/microfi/internal/fakeemu"
)

const (
	regA emulator.Reg = iota + 1
	regB
	regC
)

var testRegs = []emulator.RegInfo{
	{Reg: regA, Name: "a", Width: 32},
	{Reg: regB, Name: "b", Width: 12},
	{Reg: regC, Name: "c", Width: 64},
}

func newTestSpace(t *testing.T) (*Space, *fakeemu.Emulator) {
	t.Helper()
	emu := fakeemu.New(emulator.ARCH_UNKNOWN)
	regs, err := NewRegisterArea("register", emu, testRegs)
	require.NoError(t, err)
	space := NewSpace()
	require.NoError(t, space.RegisterAreas(
		regs,
		NewMemoryArea("ram", emu, 0x1000, 0x10),
		NewMemoryArea("rom", emu, 0x8000, 0x4),
	))
	return space, emu
}

func TestSpaceLayout(t *testing.T) {
	space, _ := newTestSpace(t)

	var offsets []uint64
	for _, area := range space.Areas() {
		offsets = append(offsets, area.Offset())
	}
	assert.Equal(t, []uint64{0, 14, 30}, offsets)
	assert.Equal(t, uint64(34), space.Size())

	ram, err := space.Area("ram")
	require.NoError(t, err)
	assert.Equal(t, uint64(14), ram.Offset())

	_, err = space.Area("flash")
	assert.ErrorIs(t, err, ErrAreaNotFound)
}

func TestSpaceRoundTrip(t *testing.T) {
	space, _ := newTestSpace(t)

	for addr := uint64(0); addr < space.Size(); addr++ {
		e, err := space.Decode(addr)
		require.NoError(t, err, "addr %#x", addr)
		got, err := space.Encode(e)
		require.NoError(t, err)
		assert.Equal(t, addr, got)

		again, err := space.Decode(got)
		require.NoError(t, err)
		assert.Same(t, e.Area(), again.Area())
		assert.Equal(t, e.Offset(), again.Offset())
	}
}

func TestSpaceDecodeOutOfRange(t *testing.T) {
	_, err := NewSpace().Decode(0)
	assert.ErrorIs(t, err, ErrAddressTooLow)

	space, _ := newTestSpace(t)
	_, err = space.Decode(space.Size())
	assert.ErrorIs(t, err, ErrAddressInvalid)
}

func TestSpaceEncodeForeignElement(t *testing.T) {
	space, emu := newTestSpace(t)
	other := NewMemoryArea("other", emu, 0, 1)
	e, err := other.Decode(0)
	require.NoError(t, err)

	_, err = space.Encode(e)
	assert.ErrorIs(t, err, ErrAreaNotRegistered)
}

func TestSpaceRegisterTwice(t *testing.T) {
	area := NewMemoryArea("ram", nil, 0, 8)
	require.NoError(t, NewSpace().RegisterAreas(area))
	assert.ErrorIs(t, NewSpace().RegisterAreas(area), ErrAreaBound)
}

func TestSpaceRegisterAtomic(t *testing.T) {
	space := NewSpace()
	a := NewMemoryArea("a", nil, 0, 16)
	b := NewMemoryArea("b", nil, 0, 16)
	assert.ErrorIs(t, space.RegisterAreas(a, b, a), ErrAreaBound)
	assert.Empty(t, space.Areas())
	assert.Zero(t, space.Size())
	_, err := space.Decode(20)
	assert.ErrorIs(t, err, ErrAddressTooLow)

	bound := NewMemoryArea("bound", nil, 0, 4)
	require.NoError(t, NewSpace().RegisterAreas(bound))
	assert.ErrorIs(t, space.RegisterAreas(a, bound), ErrAreaBound)
	assert.Empty(t, space.Areas())

	require.NoError(t, space.RegisterAreas(a, b))
	assert.Equal(t, uint64(32), space.Size())
}

func TestSpaceOverflow(t *testing.T) {
	space := NewSpace()
	require.NoError(t, space.RegisterAreas(NewMemoryArea("low", nil, 0, math.MaxUint64)))
	require.NoError(t, space.RegisterAreas(NewMemoryArea("last", nil, 0, 1)))
	assert.Equal(t, uint64(math.MaxUint64), space.Size())

	err := space.RegisterAreas(NewMemoryArea("high", nil, 0, 1))
	assert.ErrorIs(t, err, ErrAddressOverflow)
	assert.Len(t, space.Areas(), 2)
}

func TestSpaceCloseReleasesTargets(t *testing.T) {
	space, emu := newTestSpace(t)
	require.NoError(t, space.Close())
	assert.True(t, emu.Closed())
}

func TestSpaceSkipsEmptyAreas(t *testing.T) {
	space := NewSpace()
	require.NoError(t, space.RegisterAreas(
		NewMemoryArea("a", nil, 0, 2),
		NewMemoryArea("empty", nil, 0, 0),
		NewMemoryArea("b", nil, 0x100, 2),
	))
	e, err := space.Decode(2)
	require.NoError(t, err)
	assert.Equal(t, "b", e.Area().Name())
	assert.Equal(t, uint64(0), e.Offset())
}
