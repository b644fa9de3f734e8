// Package blobtest provides blobstore wrappers for failure-injection tests.
package blobtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/hupe1980/vectable/blobstore"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault")

// Op identifies a store operation a fault applies to.
type Op string

const (
	OpOpen        Op = "open"
	OpPut         Op = "put"
	OpPutIfAbsent Op = "put-if-absent"
	OpDelete      Op = "delete"
	OpList        Op = "list"
)

// Fault defines a failure for names containing a pattern.
type Fault struct {
	Op      Op
	Pattern string
	// Times is the number of calls that fail. 0 fails every call.
	Times int
	// Partial writes the first half of the data before failing a Put.
	Partial bool
	Err     error
}

// FaultyStore wraps a ConditionalStore and injects errors.
type FaultyStore struct {
	blobstore.ConditionalStore

	mu     sync.Mutex
	faults []*Fault
	calls  map[Op]int
}

// NewFaultyStore wraps s.
func NewFaultyStore(s blobstore.ConditionalStore) *FaultyStore {
	return &FaultyStore{ConditionalStore: s, calls: make(map[Op]int)}
}

// AddFault registers a fault. Later faults take precedence.
func (f *FaultyStore) AddFault(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	f.faults = append(f.faults, &fault)
}

// Reset removes all faults.
func (f *FaultyStore) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = nil
}

// Calls returns how many times op was invoked.
func (f *FaultyStore) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FaultyStore) match(op Op, name string) *Fault {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[op]++
	for i := len(f.faults) - 1; i >= 0; i-- {
		ft := f.faults[i]
		if ft.Op != op || !strings.Contains(name, ft.Pattern) {
			continue
		}
		if ft.Times < 0 {
			continue
		}
		if ft.Times > 0 {
			ft.Times--
			if ft.Times == 0 {
				ft.Times = -1
			}
		}
		cp := *ft
		return &cp
	}
	return nil
}

func (f *FaultyStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if ft := f.match(OpOpen, name); ft != nil {
		return nil, ft.Err
	}
	return f.ConditionalStore.Open(ctx, name)
}

func (f *FaultyStore) Put(ctx context.Context, name string, data []byte) error {
	if ft := f.match(OpPut, name); ft != nil {
		if ft.Partial {
			_ = f.ConditionalStore.Put(ctx, name, data[:len(data)/2])
		}
		return ft.Err
	}
	return f.ConditionalStore.Put(ctx, name, data)
}

func (f *FaultyStore) PutIfAbsent(ctx context.Context, name string, data []byte) error {
	if ft := f.match(OpPutIfAbsent, name); ft != nil {
		return ft.Err
	}
	return f.ConditionalStore.PutIfAbsent(ctx, name, data)
}

func (f *FaultyStore) Delete(ctx context.Context, name string) error {
	if ft := f.match(OpDelete, name); ft != nil {
		return ft.Err
	}
	return f.ConditionalStore.Delete(ctx, name)
}

func (f *FaultyStore) List(ctx context.Context, prefix string) ([]string, error) {
	if ft := f.match(OpList, prefix); ft != nil {
		return nil, ft.Err
	}
	return f.ConditionalStore.List(ctx, prefix)
}
