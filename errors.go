package vectable

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/vectable/fragment"
	"github.com/hupe1980/vectable/manifest"
	"github.com/hupe1980/vectable/query"
	"github.com/hupe1980/vectable/schema"
)

// Kind classifies errors returned by this package.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindSchemaMismatch
	KindInvalidSchema
	KindEmptyBatch
	KindStorageWrite
	KindStorageRead
	KindVersionConflict
	KindWriteContention
	KindTableNotFound
	KindTableAlreadyExists
	KindVersionNotFound
	KindDimensionMismatch
	KindInvalidK
	KindConnection
	KindCorrupt
	KindInvalidArgument
	KindCanceled
)

var kindNames = [...]string{
	KindUnknown:            "Unknown",
	KindSchemaMismatch:     "SchemaMismatch",
	KindInvalidSchema:      "InvalidSchema",
	KindEmptyBatch:         "EmptyBatch",
	KindStorageWrite:       "StorageWrite",
	KindStorageRead:        "StorageRead",
	KindVersionConflict:    "VersionConflict",
	KindWriteContention:    "WriteContention",
	KindTableNotFound:      "TableNotFound",
	KindTableAlreadyExists: "TableAlreadyExists",
	KindVersionNotFound:    "VersionNotFound",
	KindDimensionMismatch:  "DimensionMismatch",
	KindInvalidK:           "InvalidK",
	KindConnection:         "Connection",
	KindCorrupt:            "Corrupt",
	KindInvalidArgument:    "InvalidArgument",
	KindCanceled:           "Canceled",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

var (
	ErrSchemaMismatch     = errors.New("schema mismatch")
	ErrInvalidSchema      = errors.New("invalid schema")
	ErrEmptyBatch         = errors.New("empty batch")
	ErrStorageWrite       = errors.New("storage write failed")
	ErrStorageRead        = errors.New("storage read failed")
	ErrVersionConflict    = errors.New("version conflict")
	ErrWriteContention    = errors.New("write contention: commit retries exhausted")
	ErrTableNotFound      = errors.New("table not found")
	ErrTableAlreadyExists = errors.New("table already exists")
	ErrVersionNotFound    = errors.New("version not found")
	ErrDimensionMismatch  = errors.New("dimension mismatch")
	ErrInvalidK           = errors.New("k must be positive")
	ErrConnection         = errors.New("connection failed")
	ErrCorrupt            = errors.New("corrupt data")
	ErrInvalidArgument    = errors.New("invalid argument")
)

var kindSentinels = map[Kind]error{
	KindSchemaMismatch:     ErrSchemaMismatch,
	KindInvalidSchema:      ErrInvalidSchema,
	KindEmptyBatch:         ErrEmptyBatch,
	KindStorageWrite:       ErrStorageWrite,
	KindStorageRead:        ErrStorageRead,
	KindVersionConflict:    ErrVersionConflict,
	KindWriteContention:    ErrWriteContention,
	KindTableNotFound:      ErrTableNotFound,
	KindTableAlreadyExists: ErrTableAlreadyExists,
	KindVersionNotFound:    ErrVersionNotFound,
	KindDimensionMismatch:  ErrDimensionMismatch,
	KindInvalidK:           ErrInvalidK,
	KindConnection:         ErrConnection,
	KindCorrupt:            ErrCorrupt,
	KindInvalidArgument:    ErrInvalidArgument,
}

// Error is the error type returned by Connection and Table methods.
//
// errors.Is matches both the Kind sentinel of this package (ErrTableNotFound)
// and whatever the cause wraps (manifest.ErrTableNotFound, context.Canceled).
type Error struct {
	Kind  Kind
	Op    string
	Table string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Table != "" {
		b.WriteString(" ")
		b.WriteString(e.Table)
	}
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(e.Kind.String())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel of e.Kind.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op, table string, err error) *Error {
	return &Error{Kind: kind, Op: op, Table: table, Err: err}
}

// translateError maps package errors onto a Kind. Order matters: the most
// specific cause wins.
func translateError(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(classify(err), op, table, err)
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, ErrWriteContention):
		return KindWriteContention
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, fragment.ErrBatchTooLarge):
		return KindInvalidArgument
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, schema.ErrInvalidSchema):
		return KindInvalidSchema
	case errors.Is(err, schema.ErrSchemaMismatch):
		return KindSchemaMismatch
	case errors.Is(err, fragment.ErrEmptyBatch):
		return KindEmptyBatch
	case errors.Is(err, manifest.ErrTableNotFound):
		return KindTableNotFound
	case errors.Is(err, manifest.ErrTableAlreadyExists):
		return KindTableAlreadyExists
	case errors.Is(err, manifest.ErrVersionNotFound):
		return KindVersionNotFound
	case errors.Is(err, manifest.ErrVersionConflict):
		return KindVersionConflict
	case errors.Is(err, manifest.ErrCorrupt), errors.Is(err, fragment.ErrCorrupt):
		return KindCorrupt
	case errors.Is(err, manifest.ErrStorageWrite), errors.Is(err, fragment.ErrStorageWrite):
		return KindStorageWrite
	case errors.Is(err, manifest.ErrStorageRead), errors.Is(err, fragment.ErrStorageRead):
		return KindStorageRead
	case errors.Is(err, query.ErrDimensionMismatch):
		return KindDimensionMismatch
	case errors.Is(err, query.ErrInvalidK):
		return KindInvalidK
	case errors.Is(err, query.ErrInvalidVector):
		return KindInvalidArgument
	default:
		return KindUnknown
	}
}
