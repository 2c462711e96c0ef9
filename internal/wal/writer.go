package wal

import (
	"encoding/binary"
	"fmt"
	"os"

	"embracedb/internal/base"
)

// DefaultBufferSize is the write buffer capacity. Records accumulate in
// memory until the buffer would overflow, Flush, or Sync.
const DefaultBufferSize = 4096

// Writer appends CRC-framed records to the log file through a fixed-size
// buffer. The buffer holds exact on-disk bytes; Flush moves them to the
// OS, and only Sync makes them durable.
//
// A Writer whose open failed stays usable as a disabled sink: every
// append returns base.ErrWALNotOpen instead of panicking, so the engine
// can surface the I/O error per operation.
type Writer struct {
	path    string
	file    *os.File
	buf     []byte
	bufSize int
}

// NewWriter opens (or creates) the log at path for appending. On open
// failure the returned Writer is still non-nil but disabled, alongside
// the error.
func NewWriter(path string, bufSize int) (*Writer, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	w := &Writer{
		path:    path,
		buf:     make([]byte, 0, bufSize),
		bufSize: bufSize,
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return w, fmt.Errorf("open wal %s: %w", path, err)
	}
	w.file = file
	return w, nil
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// WritePut appends a PUT record.
func (w *Writer) WritePut(key, value []byte) error {
	return w.writeRecord(RecordPut, key, value)
}

// WriteUpdate appends an UPDATE record.
func (w *Writer) WriteUpdate(key, value []byte) error {
	return w.writeRecord(RecordUpdate, key, value)
}

// WriteDelete appends a DELETE record with an empty value.
func (w *Writer) WriteDelete(key []byte) error {
	return w.writeRecord(RecordDelete, key, nil)
}

// WriteCheckpoint appends a checkpoint marker. Replay treats it as
// advisory.
func (w *Writer) WriteCheckpoint() error {
	return w.writeRecord(RecordCheckpoint, nil, nil)
}

// writeRecord frames one record into the buffer, flushing first when the
// record would not fit. A record larger than the buffer capacity is
// appended whole after the flush and delivered by the next flush.
func (w *Writer) writeRecord(typ uint8, key, value []byte) error {
	if w.file == nil {
		return base.ErrWALNotOpen
	}
	if len(key) > base.MaxKeySize {
		return base.ErrKeyTooLarge
	}
	if len(value) > base.MaxValueSize {
		return base.ErrValueTooLarge
	}

	recordSize := 1 + 4 + len(key) + 4 + len(value) + 4
	if len(w.buf)+recordSize > w.bufSize {
		if err := w.flushBuffer(); err != nil {
			return err
		}
	}

	start := len(w.buf)
	var lenBuf [4]byte

	w.buf = append(w.buf, typ)
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(key)))
	w.buf = append(w.buf, lenBuf[:]...)
	w.buf = append(w.buf, key...)
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(value)))
	w.buf = append(w.buf, lenBuf[:]...)
	w.buf = append(w.buf, value...)

	crc := base.Checksum(w.buf[start:])
	binary.LittleEndian.PutUint32(lenBuf[:], crc)
	w.buf = append(w.buf, lenBuf[:]...)

	return nil
}

// flushBuffer drains the buffer to the file, looping on short writes.
// The Go runtime retries EINTR internally, so only genuine errors and
// zero-progress writes surface.
func (w *Writer) flushBuffer() error {
	if len(w.buf) == 0 {
		return nil
	}

	written := 0
	for written < len(w.buf) {
		n, err := w.file.Write(w.buf[written:])
		if err != nil {
			return fmt.Errorf("write wal: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("write wal: short write (wrote 0 bytes)")
		}
		written += n
	}

	w.buf = w.buf[:0]
	return nil
}

// Flush writes all buffered records to the OS. Bytes are not durable
// until Sync.
func (w *Writer) Flush() error {
	if w.file == nil {
		return base.ErrWALNotOpen
	}
	return w.flushBuffer()
}

// Sync flushes the buffer and forces the file's bytes to durable
// storage. This is the only call that establishes the durability
// contract.
func (w *Writer) Sync() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if err := fdatasync(w.file); err != nil {
		return fmt.Errorf("sync wal: %w", err)
	}
	return nil
}

// Close flushes, syncs, and closes the file. Safe to call on a disabled
// Writer.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.Sync()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.file = nil
	return err
}
