package base

import (
	"errors"
	"fmt"
)

var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrDatabaseClosed = errors.New("database is closed")
	ErrKeyTooLarge    = errors.New("key too large")
	ErrValueTooLarge  = errors.New("value too large")
	ErrCorruption     = errors.New("data corruption detected")
	ErrWALNotOpen     = errors.New("wal file not open")

	// Corruption subclasses; errors.Is(err, ErrCorruption) matches both.
	ErrInvalidMagicNumber = fmt.Errorf("%w: invalid snapshot magic number", ErrCorruption)
	ErrInvalidVersion     = fmt.Errorf("%w: unsupported snapshot version", ErrCorruption)

	// ErrNotSupported is reserved for operations that may be rejected by
	// future on-disk versions.
	ErrNotSupported = errors.New("operation not supported")
)
