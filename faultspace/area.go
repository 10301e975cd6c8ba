package faultspace

import (
	"fmt"

	"go.uber.org/zap"
)

type Injector func(original byte) byte

type InjectResult struct {
	Original byte
	Injected byte
}

// Element is a single byte of the fault space. Implementations may only
// change a subset of its bits on injection.
type Element interface {
	fmt.Stringer
	Area() Area
	Offset() uint64
	Address() uint64
	Inject(fn Injector) (InjectResult, error)
}

// Area is a contiguous range of the fault space. Decode receives offsets
// relative to the area's own mapping.
type Area interface {
	Name() string
	Size() uint64
	Offset() uint64
	Decode(offset uint64) (Element, error)
	bind(offset uint64) error
	isBound() bool
}

// BaseArea carries the name and the mapping offset of an area. Embed it to
// implement Area outside this package.
type BaseArea struct {
	name   string
	offset uint64
	bound  bool
}

func NewBaseArea(name string) BaseArea {
	return BaseArea{name: name}
}

func (a *BaseArea) Name() string {
	return a.name
}

func (a *BaseArea) Offset() uint64 {
	return a.offset
}

func (a *BaseArea) isBound() bool {
	return a.bound
}

func (a *BaseArea) bind(offset uint64) error {
	if a.bound {
		return ErrAreaBound
	}
	a.offset = offset
	a.bound = true
	return nil
}

// Invert flips every bit.
func Invert(b byte) byte {
	return ^b
}

// FlipBit returns an injector flipping a single bit.
func FlipBit(bit uint) Injector {
	return func(b byte) byte {
		return b ^ 1<<(bit%8)
	}
}

// Set returns an injector overwriting the byte.
func Set(v byte) Injector {
	return func(byte) byte {
		return v
	}
}

type options struct {
	log *zap.Logger
}

type Option func(*options)

func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func newOptions(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
