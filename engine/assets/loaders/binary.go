package loaders

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
)

// BinaryReader decodes little-endian field groups from an in-memory stream.
// A group is either read whole or not at all.
type BinaryReader struct {
	data []byte
	off  int
}

func NewBinaryReader(data []byte) *BinaryReader {
	return &BinaryReader{data: data}
}

// Read decodes one fixed-size value (a struct of sized fields, an array or a
// scalar). A stream shorter than the value yields io.ErrUnexpectedEOF and
// leaves the offset untouched.
func (r *BinaryReader) Read(v any) error {
	size := binary.Size(v)
	if size < 0 {
		return errors.New("binary reader: value has no fixed size")
	}
	if r.Len() < size {
		return io.ErrUnexpectedEOF
	}
	if err := binary.Read(bytes.NewReader(r.data[r.off:r.off+size]), binary.LittleEndian, v); err != nil {
		return err
	}
	r.off += size
	return nil
}

func (r *BinaryReader) U32() (uint32, error) {
	var v uint32
	err := r.Read(&v)
	return v, err
}

// Bytes returns the next n bytes without copying.
func (r *BinaryReader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Align skips padding up to the next multiple of n.
func (r *BinaryReader) Align(n int) error {
	pad := (n - r.off%n) % n
	_, err := r.Bytes(pad)
	return err
}

// Len is the number of unread bytes.
func (r *BinaryReader) Len() int {
	return len(r.data) - r.off
}

// BinaryWriter is the encoding counterpart used by the cook writers.
type BinaryWriter struct {
	buf bytes.Buffer
}

func (w *BinaryWriter) Write(v any) {
	// bytes.Buffer never fails and v is always fixed size here.
	_ = binary.Write(&w.buf, binary.LittleEndian, v)
}

func (w *BinaryWriter) WriteBytes(b []byte) {
	w.buf.Write(b)
}

func (w *BinaryWriter) Align(n int) {
	for w.buf.Len()%n != 0 {
		w.buf.WriteByte(0)
	}
}

func (w *BinaryWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// ReadFile reads a whole stream from fsys.
func ReadFile(fsys fs.FS, path string) ([]byte, error) {
	return fs.ReadFile(fsys, path)
}
