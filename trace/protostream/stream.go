package protostream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/wnxd/microfi/trace"
)

var gzipMagic = []byte{0x1f, 0x8b}

// MAX_RECORD_SIZE bounds the length prefix accepted by ReadRecord.
const MAX_RECORD_SIZE = 64 << 20

var ErrRecordTooLarge = errors.New("record too large")

// Reader decodes a stream of length-prefixed Trace_Event records into
// trace steps. Gzip compressed streams are detected automatically.
type Reader struct {
	r       io.Reader
	closers []io.Closer
	pos     uint64
	started bool
	avail   bool
	ev      Event
	buf     []byte
}

func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(gzipMagic))
	if err == nil && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", trace.ErrTraceCorrupt, err)
		}
		return &Reader{r: zr, closers: []io.Closer{zr}}, nil
	}
	return &Reader{r: br}, nil
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closers = append(r.closers, f)
	return r, nil
}

func (r *Reader) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Reader) Next() (trace.Step, error) {
	if !r.started {
		r.started = true
		ev, err := r.readEvent()
		if err != nil {
			return trace.Step{}, err
		}
		r.ev, r.avail = ev, true
	}
	if !r.avail {
		return trace.Step{}, io.EOF
	}
	step := trace.Step{
		Pos:    r.pos + 1,
		Events: []trace.Event{{Addr: r.ev.IP, Access: trace.ACCESS_EXECUTE}},
	}
	r.avail = false
	for {
		ev, err := r.readEvent()
		if err == io.EOF {
			break
		} else if err != nil {
			return trace.Step{}, err
		}
		if !ev.HasMem {
			r.ev, r.avail = ev, true
			break
		}
		step.Events = append(step.Events, trace.Expand(ev.MemAddr, uint(ev.Width), ev.Access)...)
	}
	r.pos++
	return step, nil
}

func (r *Reader) readEvent() (Event, error) {
	msg, err := ReadRecord(r.r, r.buf)
	if err == io.EOF {
		return Event{}, io.EOF
	} else if err != nil {
		return Event{}, fmt.Errorf("%w: record after step %d: %w", trace.ErrTraceCorrupt, r.pos, err)
	}
	r.buf = msg
	var ev Event
	if err := ev.Unmarshal(msg); err != nil {
		return Event{}, fmt.Errorf("%w: %w", trace.ErrTraceCorrupt, err)
	}
	return ev, nil
}

// ReadRecord reads one length-prefixed record, reusing buf when it is large
// enough. A stream ending between records yields io.EOF, a stream ending
// inside one io.ErrUnexpectedEOF.
func ReadRecord(r io.Reader, buf []byte) ([]byte, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(size[:])
	if n > MAX_RECORD_SIZE {
		return nil, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, n)
	}
	if uint32(cap(buf)) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

type Writer struct {
	w  io.Writer
	zw *gzip.Writer
}

// NewWriter writes length-prefixed records to w, gzip compressed when
// compress is set. Close flushes the compressor but leaves w open.
func NewWriter(w io.Writer, compress bool) *Writer {
	if compress {
		zw := gzip.NewWriter(w)
		return &Writer{w: zw, zw: zw}
	}
	return &Writer{w: w}
}

func (w *Writer) Write(ev Event) error {
	return WriteRecord(w.w, ev.Marshal())
}

func (w *Writer) Close() error {
	if w.zw != nil {
		return w.zw.Close()
	}
	return nil
}

// WriteRecord writes msg with its big-endian 32-bit length prefix.
func WriteRecord(w io.Writer, msg []byte) error {
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(msg)))
	if _, err := w.Write(size[:]); err != nil {
		return err
	}
	_, err := w.Write(msg)
	return err
}
