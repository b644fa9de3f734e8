// Package bitset provides a fixed-size bitset with a compact byte encoding.
//
// Used internally for:
//   - Validity masks of nullable fragment columns
//   - Boolean column values
package bitset
