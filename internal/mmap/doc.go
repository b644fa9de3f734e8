// Package mmap maps local blob files read-only into memory.
//
// On unix platforms files are mapped with mmap(2); elsewhere the file is read
// into a heap buffer so callers see the same API. Close is idempotent, and
// the byte slice returned by Bytes must not be used after Close.
package mmap
