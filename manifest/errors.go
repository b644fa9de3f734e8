package manifest

import "errors"

var (
	// ErrTableNotFound is returned when no manifest exists for a table.
	ErrTableNotFound = errors.New("table not found")

	// ErrTableAlreadyExists is returned by CreateInitial when a manifest is already present.
	ErrTableAlreadyExists = errors.New("table already exists")

	// ErrVersionConflict is returned by Publish when another writer published the next version first.
	ErrVersionConflict = errors.New("manifest version conflict")

	// ErrVersionNotFound is returned when a specific version does not exist.
	ErrVersionNotFound = errors.New("manifest version not found")

	// ErrCorrupt is returned when a manifest fails verification or decoding.
	ErrCorrupt = errors.New("corrupt manifest")

	// ErrStorageRead wraps failures to read manifests.
	ErrStorageRead = errors.New("manifest storage read failed")

	// ErrStorageWrite wraps failures to write manifests.
	ErrStorageWrite = errors.New("manifest storage write failed")
)
