package wal

// Record types. The on-disk framing for every record is
// [type:1][keyLen:4][key][valueLen:4][value][crc32:4], little-endian,
// with the CRC covering all preceding bytes of the record.
const (
	RecordPut        uint8 = 1
	RecordDelete     uint8 = 2
	RecordUpdate     uint8 = 3
	RecordCheckpoint uint8 = 4
)

// Record is a single decoded WAL record. Key and Value are empty for
// checkpoint markers; Value is empty for deletes.
type Record struct {
	Type  uint8
	Key   []byte
	Value []byte
}

func validType(t uint8) bool {
	return t >= RecordPut && t <= RecordCheckpoint
}
