package fragment

import "errors"

var (
	// ErrEmptyBatch is returned when writing zero rows.
	ErrEmptyBatch = errors.New("empty batch")

	// ErrStorageWrite wraps failures to store a fragment.
	ErrStorageWrite = errors.New("fragment storage write failed")

	// ErrStorageRead wraps failures to fetch a fragment.
	ErrStorageRead = errors.New("fragment storage read failed")

	// ErrBatchTooLarge is returned when a column block of a batch would
	// overflow the 32-bit lengths and offsets of the fragment format.
	ErrBatchTooLarge = errors.New("batch too large for one fragment")

	// ErrCorrupt is returned for fragments that fail verification or decoding.
	ErrCorrupt = errors.New("corrupt fragment")
)
