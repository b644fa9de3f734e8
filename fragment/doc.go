// Package fragment implements the immutable columnar fragment format.
//
// A fragment holds the rows of one write batch. Each column is stored as one
// block, optionally compressed with LZ4 or ZSTD; nullable data carries a
// validity bitmap. The blob is sealed with a magic number, a format version
// and a CRC32C checksum, and the manifest additionally records the blob size
// and checksum.
//
// Layout (little endian):
//
//	header  [magic "VTFR"][version][CRC32C][payload len]
//	payload [id][schema][rows u32][compression u8][ncols u32]
//	        ncols × [block len u32][uncompressed u32][compressed u32 (0 = raw)][data]
//
// Fragments are written once with a single Put and never modified.
package fragment
