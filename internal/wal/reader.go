package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"embracedb/internal/base"
)

// Reader streams records out of a log file, validating framing and CRC
// as it goes. A clean end of file is reported as io.EOF from Next; an
// EOF in the middle of a record is a torn tail write and is reported as
// corruption instead.
type Reader struct {
	file *os.File
	br   *bufio.Reader
}

// NewReader opens the log at path for streaming. A missing file is
// reported via os.IsNotExist on the returned error so callers can treat
// it as an empty log.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file: file,
		br:   bufio.NewReader(file),
	}, nil
}

// Next decodes one record. Returns io.EOF at a clean record boundary at
// the end of the log, or an error wrapping base.ErrCorruption for any
// framing, length, CRC, or mid-record EOF violation.
func (r *Reader) Next() (Record, error) {
	var rec Record

	typ, err := r.br.ReadByte()
	if err == io.EOF {
		return rec, io.EOF
	}
	if err != nil {
		return rec, fmt.Errorf("read wal record type: %w", err)
	}
	if !validType(typ) {
		return rec, fmt.Errorf("%w: invalid wal record type %d", base.ErrCorruption, typ)
	}
	rec.Type = typ

	crc := base.ChecksumUpdate(0, []byte{typ})

	var lenBuf [4]byte
	if err := r.readFull(lenBuf[:]); err != nil {
		return rec, err
	}
	keyLen := binary.LittleEndian.Uint32(lenBuf[:])
	crc = base.ChecksumUpdate(crc, lenBuf[:])
	if keyLen > base.MaxKeySize {
		return rec, fmt.Errorf("%w: wal key length %d exceeds maximum", base.ErrCorruption, keyLen)
	}

	rec.Key = make([]byte, keyLen)
	if err := r.readFull(rec.Key); err != nil {
		return rec, err
	}
	crc = base.ChecksumUpdate(crc, rec.Key)

	if err := r.readFull(lenBuf[:]); err != nil {
		return rec, err
	}
	valueLen := binary.LittleEndian.Uint32(lenBuf[:])
	crc = base.ChecksumUpdate(crc, lenBuf[:])
	if valueLen > base.MaxValueSize {
		return rec, fmt.Errorf("%w: wal value length %d exceeds maximum", base.ErrCorruption, valueLen)
	}

	rec.Value = make([]byte, valueLen)
	if err := r.readFull(rec.Value); err != nil {
		return rec, err
	}
	crc = base.ChecksumUpdate(crc, rec.Value)

	if err := r.readFull(lenBuf[:]); err != nil {
		return rec, err
	}
	storedCRC := binary.LittleEndian.Uint32(lenBuf[:])
	if storedCRC != crc {
		return rec, fmt.Errorf("%w: wal crc mismatch (stored %#x, computed %#x)",
			base.ErrCorruption, storedCRC, crc)
	}

	return rec, nil
}

// readFull fills buf completely. Any EOF here is past the first byte of
// the record, so it is a partial record, not a clean end.
func (r *Reader) readFull(buf []byte) error {
	if _, err := io.ReadFull(r.br, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: partial record at end of WAL", base.ErrCorruption)
		}
		return fmt.Errorf("read wal: %w", err)
	}
	return nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
