package layout

import "hash/crc32"

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// ChecksumCRC32C computes the CRC-32C (Castagnoli) checksum of data, the
// same algorithm and table used for every per-record integrity check.
func ChecksumCRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliTable)
}
