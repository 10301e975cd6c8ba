package ipmsg

import (
	"bufio"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/wnxd/microfi/trace/protostream"
)

// Writer writes a stream of length-prefixed messages, the same framing trace
// streams use.
type Writer struct {
	w  io.Writer
	zw *gzip.Writer
}

func NewWriter(w io.Writer, compress bool) *Writer {
	if compress {
		zw := gzip.NewWriter(w)
		return &Writer{w: zw, zw: zw}
	}
	return &Writer{w: w}
}

func (w *Writer) Write(m Message) error {
	return protostream.WriteRecord(w.w, m.Marshal())
}

// Close flushes the compressor, the underlying writer stays open.
func (w *Writer) Close() error {
	if w.zw != nil {
		return w.zw.Close()
	}
	return nil
}

type Reader struct {
	r   io.Reader
	zr  *gzip.Reader
	buf []byte
	n   uint64
}

// NewReader reads a message stream, gzip compressed or not.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMessageInvalid, err)
		}
		return &Reader{r: zr, zr: zr}, nil
	}
	return &Reader{r: br}, nil
}

// Next returns the next message or io.EOF at the end of the stream.
func (r *Reader) Next() (Message, error) {
	msg, err := protostream.ReadRecord(r.r, r.buf)
	if err == io.EOF {
		return Message{}, io.EOF
	} else if err != nil {
		return Message{}, fmt.Errorf("%w: message %d: %w", ErrMessageInvalid, r.n, err)
	}
	r.buf = msg
	var m Message
	if err := m.Unmarshal(msg); err != nil {
		return Message{}, fmt.Errorf("message %d: %w", r.n, err)
	}
	r.n++
	return m, nil
}

func (r *Reader) Close() error {
	if r.zr != nil {
		return r.zr.Close()
	}
	return nil
}
