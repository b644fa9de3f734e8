package vectable

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordAdd is called after each Table.Add.
	// rows is the batch size, attempts the number of publish attempts.
	RecordAdd(rows, attempts int, duration time.Duration, err error)

	// RecordCommitConflict is called each time a publish loses the version race.
	RecordCommitConflict()

	// RecordSearch is called after each search operation.
	// k is the number of neighbors requested, scanned the number of fragments read.
	RecordSearch(k, scanned int, duration time.Duration, err error)

	// RecordDelete is called after each delete operation.
	RecordDelete(deleted int, duration time.Duration, err error)

	// RecordFragmentWrite is called after each fragment blob upload.
	RecordFragmentWrite(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(int, int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordCommitConflict()                           {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordDelete(int, time.Duration, error)          {}
func (NoopMetricsCollector) RecordFragmentWrite(int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AddCount            atomic.Int64
	AddErrors           atomic.Int64
	AddRows             atomic.Int64
	AddTotalNanos       atomic.Int64
	CommitConflicts     atomic.Int64
	SearchCount         atomic.Int64
	SearchErrors        atomic.Int64
	SearchTotalNanos    atomic.Int64
	FragmentsScanned    atomic.Int64
	DeleteCount         atomic.Int64
	DeleteErrors        atomic.Int64
	RowsDeleted         atomic.Int64
	FragmentWrites      atomic.Int64
	FragmentWriteErrors atomic.Int64
	FragmentBytes       atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(rows, _ int, duration time.Duration, err error) {
	b.AddCount.Add(1)
	b.AddTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AddErrors.Add(1)
		return
	}
	b.AddRows.Add(int64(rows))
}

// RecordCommitConflict implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCommitConflict() {
	b.CommitConflicts.Add(1)
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_, scanned int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	b.FragmentsScanned.Add(int64(scanned))
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(deleted int, _ time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
		return
	}
	b.RowsDeleted.Add(int64(deleted))
}

// RecordFragmentWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFragmentWrite(bytes int64, _ time.Duration, err error) {
	b.FragmentWrites.Add(1)
	if err != nil {
		b.FragmentWriteErrors.Add(1)
		return
	}
	b.FragmentBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddCount:            b.AddCount.Load(),
		AddErrors:           b.AddErrors.Load(),
		AddRows:             b.AddRows.Load(),
		AddAvgNanos:         avg(b.AddTotalNanos.Load(), b.AddCount.Load()),
		CommitConflicts:     b.CommitConflicts.Load(),
		SearchCount:         b.SearchCount.Load(),
		SearchErrors:        b.SearchErrors.Load(),
		SearchAvgNanos:      avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		FragmentsScanned:    b.FragmentsScanned.Load(),
		DeleteCount:         b.DeleteCount.Load(),
		DeleteErrors:        b.DeleteErrors.Load(),
		RowsDeleted:         b.RowsDeleted.Load(),
		FragmentWrites:      b.FragmentWrites.Load(),
		FragmentWriteErrors: b.FragmentWriteErrors.Load(),
		FragmentBytes:       b.FragmentBytes.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddCount            int64
	AddErrors           int64
	AddRows             int64
	AddAvgNanos         int64
	CommitConflicts     int64
	SearchCount         int64
	SearchErrors        int64
	SearchAvgNanos      int64
	FragmentsScanned    int64
	DeleteCount         int64
	DeleteErrors        int64
	RowsDeleted         int64
	FragmentWrites      int64
	FragmentWriteErrors int64
	FragmentBytes       int64
}
