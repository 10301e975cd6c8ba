package faultspace

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"sort"

	"go.uber.org/zap"
)

// Space maps every registered area into one flat, byte-addressed fault
// space. Areas are laid out back to back in registration order. Register
// all areas before sharing a Space between goroutines.
type Space struct {
	log   *zap.Logger
	areas []Area
	table []Area
	index map[Area]int
	next  uint64
	full  bool
}

func NewSpace(opts ...Option) *Space {
	o := newOptions(opts)
	return &Space{
		log:   o.log,
		index: make(map[Area]int),
	}
}

// RegisterAreas maps areas after the ones already registered. Either all of
// them are mapped or, on error, none.
func (s *Space) RegisterAreas(areas ...Area) error {
	next, full := s.next, s.full
	seen := make(map[Area]struct{}, len(areas))
	for _, area := range areas {
		if _, dup := seen[area]; dup || area.isBound() {
			return fmt.Errorf("%w: %q", ErrAreaBound, area.Name())
		}
		seen[area] = struct{}{}
		size := area.Size()
		end, carry := bits.Add64(next, size, 0)
		if (full && size > 0) || (carry != 0 && end != 0) {
			return fmt.Errorf("%w: area %q at %#x with size %#x", ErrAddressOverflow, area.Name(), next, size)
		}
		next, full = end, full || carry != 0
	}

	for _, area := range areas {
		if err := area.bind(s.next); err != nil {
			return fmt.Errorf("%w: %q", err, area.Name())
		}
		s.log.Debug("mapping area", zap.String("name", area.Name()), zap.Uint64("offset", s.next), zap.Uint64("size", area.Size()))
		s.index[area] = len(s.areas)
		s.areas = append(s.areas, area)
		if area.Size() > 0 {
			s.table = append(s.table, area)
		}
		end, carry := bits.Add64(s.next, area.Size(), 0)
		s.next, s.full = end, s.full || carry != 0
	}
	return nil
}

func (s *Space) Areas() []Area {
	return append([]Area(nil), s.areas...)
}

func (s *Space) Area(name string) (Area, error) {
	for _, area := range s.areas {
		if area.Name() == name {
			return area, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrAreaNotFound, name)
}

// Size is the total number of mapped bytes, saturated at math.MaxUint64.
func (s *Space) Size() uint64 {
	if s.full {
		return math.MaxUint64
	}
	return s.next
}

func (s *Space) Encode(e Element) (uint64, error) {
	area := e.Area()
	if _, ok := s.index[area]; !ok {
		return 0, fmt.Errorf("%w: %q", ErrAreaNotRegistered, area.Name())
	}
	return area.Offset() + e.Offset(), nil
}

func (s *Space) Decode(addr uint64) (Element, error) {
	i := sort.Search(len(s.table), func(i int) bool {
		return s.table[i].Offset() > addr
	})
	if i == 0 {
		return nil, fmt.Errorf("%w: %#x", ErrAddressTooLow, addr)
	}
	area := s.table[i-1]
	s.log.Debug("decoding address", zap.Uint64("addr", addr), zap.String("area", area.Name()))
	return area.Decode(addr - area.Offset())
}

// Close releases the targets owned by the registered areas.
func (s *Space) Close() error {
	var errs []error
	for i := len(s.areas) - 1; i >= 0; i-- {
		if c, ok := s.areas[i].(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
