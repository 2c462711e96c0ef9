package base

import "hash/crc32"

// Checksum computes the CRC32 used by the WAL and snapshot formats:
// reflected polynomial 0xEDB88320, initial and final XOR 0xFFFFFFFF,
// table-driven. This is the IEEE variant, so the on-disk format is
// independent of host endianness.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// ChecksumUpdate extends a running checksum with more bytes. Feeding the
// same byte ranges in the same order as a single Checksum call yields the
// same result.
func ChecksumUpdate(crc uint32, data []byte) uint32 {
	return crc32.Update(crc, crc32.IEEETable, data)
}
