package faultspace

import (
	"fmt"
	"io"
	"sort"

	"github.com/wnxd/microfi/emulator"
	"go.uber.org/zap"
)

// RegisterArea lays the registers of an architecture out consecutively,
// each one occupying ceil(width/8) bytes.
type RegisterArea struct {
	BaseArea
	log   *zap.Logger
	ctx   emulator.RegisterContext
	regs  []emulator.RegInfo
	bases []uint64
	index map[emulator.Reg]int
	size  uint64
}

type RegisterElement struct {
	area   *RegisterArea
	offset uint64
	reg    emulator.RegInfo
	nbyte  uint
	mask   byte
}

// ByteGroup is one byte of a register view. Mask selects the bits of the
// byte that belong to the view.
type ByteGroup struct {
	Mask    byte
	Element *RegisterElement
}

func NewRegisterArea(name string, ctx emulator.RegisterContext, regs []emulator.RegInfo, opts ...Option) (*RegisterArea, error) {
	o := newOptions(opts)
	a := &RegisterArea{
		BaseArea: NewBaseArea(name),
		log:      o.log,
		ctx:      ctx,
		index:    make(map[emulator.Reg]int, len(regs)),
	}
	var offset uint64
	for _, r := range regs {
		if r.Width == 0 || r.Width > 64 {
			return nil, fmt.Errorf("%w: %s has %d bits", ErrRegisterWidth, r.Name, r.Width)
		} else if _, ok := a.index[r.Reg]; ok {
			return nil, fmt.Errorf("%w: %s", ErrRegisterDuplicate, r.Name)
		}
		a.index[r.Reg] = len(a.regs)
		a.regs = append(a.regs, r)
		a.bases = append(a.bases, offset)
		offset += uint64(byteCount(r.Width))
	}
	a.size = offset
	return a, nil
}

func NewArchRegisterArea(name string, ctx emulator.RegisterContext, arch emulator.Arch, opts ...Option) (*RegisterArea, error) {
	regs, err := emulator.Registers(arch)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, arch)
	}
	return NewRegisterArea(name, ctx, regs, opts...)
}

func (a *RegisterArea) Size() uint64 {
	return a.size
}

func (a *RegisterArea) Registers() []emulator.RegInfo {
	return append([]emulator.RegInfo(nil), a.regs...)
}

func (a *RegisterArea) Register(name string) (emulator.RegInfo, error) {
	for _, r := range a.regs {
		if r.Name == name {
			return r, nil
		}
	}
	return emulator.RegInfo{}, fmt.Errorf("%w: %s", ErrRegisterNotFound, name)
}

// RegisterOffset returns the area-relative offset of the register's
// lowest byte.
func (a *RegisterArea) RegisterOffset(reg emulator.Reg) (uint64, bool) {
	i, ok := a.index[reg]
	if !ok {
		return 0, false
	}
	return a.bases[i], true
}

func (a *RegisterArea) Close() error {
	if c, ok := a.ctx.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (a *RegisterArea) Decode(offset uint64) (Element, error) {
	if offset >= a.size {
		return nil, fmt.Errorf("%w: %#x beyond area %q", ErrAddressInvalid, offset, a.Name())
	}
	i := sort.Search(len(a.bases), func(i int) bool {
		return a.bases[i] > offset
	}) - 1
	if i < 0 {
		return nil, fmt.Errorf("%w: %#x in area %q", ErrAddressTooLow, offset, a.Name())
	}
	return a.element(i, uint(offset-a.bases[i])), nil
}

// EncodeView returns the bytes covering width bits of reg starting at
// bitOffset, in ascending byte order.
func (a *RegisterArea) EncodeView(reg emulator.Reg, bitOffset, width uint) ([]ByteGroup, error) {
	i, ok := a.index[reg]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrRegisterNotFound, reg)
	}
	info := a.regs[i]
	if width == 0 || bitOffset+width > info.Width {
		return nil, fmt.Errorf("%w: view %d+%d of %s", ErrRegisterWidth, bitOffset, width, info.Name)
	}
	masks := make([]byte, byteCount(info.Width))
	for bit := bitOffset; bit < bitOffset+width; bit++ {
		masks[bit/8] |= 1 << (bit % 8)
	}
	var groups []ByteGroup
	for b, mask := range masks {
		if mask == 0 {
			continue
		}
		groups = append(groups, ByteGroup{Mask: mask, Element: a.element(i, uint(b))})
	}
	return groups, nil
}

// Encode splits the whole register into its bytes, grouped by the mask of
// bits each byte contributes.
func (a *RegisterArea) Encode(reg emulator.Reg) (map[byte][]*RegisterElement, error) {
	i, ok := a.index[reg]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrRegisterNotFound, reg)
	}
	groups, err := a.EncodeView(reg, 0, a.regs[i].Width)
	if err != nil {
		return nil, err
	}
	ret := make(map[byte][]*RegisterElement)
	for _, g := range groups {
		ret[g.Mask] = append(ret[g.Mask], g.Element)
	}
	return ret, nil
}

func (a *RegisterArea) element(i int, b uint) *RegisterElement {
	reg := a.regs[i]
	mask := byte(0xFF)
	if live := reg.Width - 8*b; live < 8 {
		mask = 1<<live - 1
	}
	return &RegisterElement{
		area:   a,
		offset: a.bases[i] + uint64(b),
		reg:    reg,
		nbyte:  b,
		mask:   mask,
	}
}

func (e *RegisterElement) Area() Area {
	return e.area
}

func (e *RegisterElement) Offset() uint64 {
	return e.offset
}

func (e *RegisterElement) Address() uint64 {
	return e.area.Offset() + e.offset
}

func (e *RegisterElement) Register() emulator.RegInfo {
	return e.reg
}

func (e *RegisterElement) Byte() uint {
	return e.nbyte
}

// Mask selects the bits of this byte that are part of the register.
func (e *RegisterElement) Mask() byte {
	return e.mask
}

func (e *RegisterElement) Inject(fn Injector) (InjectResult, error) {
	ctx := e.area.ctx
	if ctx == nil {
		return InjectResult{}, ErrNoBackend
	}
	value, err := ctx.RegRead(e.reg.Reg)
	if err != nil {
		return InjectResult{}, err
	}
	shift := 8 * e.nbyte
	original := byte(value >> shift)
	injected := original&^e.mask | fn(original)&e.mask
	updated := value&^(0xFF<<shift) | uint64(injected)<<shift
	if err := ctx.RegWrite(e.reg.Reg, updated); err != nil {
		return InjectResult{}, err
	}
	e.area.log.Debug("injecting register",
		zap.String("register", e.reg.Name),
		zap.Uint("byte", e.nbyte),
		zap.Uint64("previous", value),
		zap.Uint64("injected", updated))
	return InjectResult{Original: original, Injected: injected}, nil
}

func (e *RegisterElement) String() string {
	return fmt.Sprintf("{ RegisterElement '%s' at byte %#x (mapped @ %#x+%#x ->%#x) }",
		e.reg.Name, e.nbyte, e.area.Offset(), e.offset, e.Address())
}
