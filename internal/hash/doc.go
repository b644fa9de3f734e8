// Package hash provides the integrity checksums used by persisted manifests and
// fragments.
//
// All on-storage checksums are CRC32-Castagnoli (CRC32C). Go's hash/crc32 uses
// SSE4.2 or the ARM CRC extension when available, and S3 accepts the same
// polynomial for upload checksums (ChecksumAlgorithmCrc32c).
package hash
