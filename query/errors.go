package query

import "errors"

var (
	// ErrDimensionMismatch is returned when the query vector length differs from the table dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidK is returned for k <= 0.
	ErrInvalidK = errors.New("k must be positive")

	// ErrInvalidVector is returned for query vectors with NaN or infinite elements.
	ErrInvalidVector = errors.New("query vector contains non-finite values")
)
