package embracedb

import "embracedb/internal/base"

//goland:noinspection GoUnusedGlobalVariable
var (
	ErrKeyNotFound    = base.ErrKeyNotFound
	ErrDatabaseClosed = base.ErrDatabaseClosed
	ErrKeyTooLarge    = base.ErrKeyTooLarge
	ErrValueTooLarge  = base.ErrValueTooLarge
	ErrCorruption     = base.ErrCorruption
	ErrWALNotOpen     = base.ErrWALNotOpen

	ErrInvalidMagicNumber = base.ErrInvalidMagicNumber
	ErrInvalidVersion     = base.ErrInvalidVersion
	ErrNotSupported       = base.ErrNotSupported
)
