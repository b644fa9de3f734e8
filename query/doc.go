// Package query implements exact nearest-neighbor search over a table snapshot.
//
// Fragments are loaded and scanned in parallel, each into a bounded max-heap;
// the per-fragment heaps are merged into one deterministic top-K.
package query
