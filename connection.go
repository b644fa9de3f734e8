package vectable

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/hupe1980/vectable/blobstore"
	"github.com/hupe1980/vectable/distance"
	"github.com/hupe1980/vectable/fragment"
	"github.com/hupe1980/vectable/manifest"
	"github.com/hupe1980/vectable/schema"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,254}$`)

// Connection is a handle to a storage root. It resolves table names to
// locations and holds no table state; every Open reads the current manifest
// from storage.
//
// A Connection is safe for concurrent use.
type Connection struct {
	uri       string
	store     blobstore.ConditionalStore
	manifests *manifest.Manager
	writer    *fragment.Writer
	reader    *fragment.Reader
	opts      options
}

// Connect opens the storage root named by uri and checks that it is reachable.
//
// Supported URIs are memory://name, file:///path (or a bare path),
// s3://bucket/prefix and minio://host:port/bucket/prefix.
func Connect(ctx context.Context, uri string, optFns ...Option) (*Connection, error) {
	o := applyOptions(optFns)

	store, err := openStore(ctx, uri, &o)
	if err != nil {
		if errors.Is(err, ErrInvalidArgument) {
			return nil, newError(KindInvalidArgument, "connect", "", err)
		}
		return nil, newError(KindConnection, "connect", "", fmt.Errorf("%s: %w", uri, err))
	}
	return connect(ctx, uri, store, o)
}

// ConnectStore creates a Connection over an already constructed store.
func ConnectStore(ctx context.Context, store blobstore.ConditionalStore, optFns ...Option) (*Connection, error) {
	if store == nil {
		return nil, newError(KindInvalidArgument, "connect", "", errors.New("nil store"))
	}
	return connect(ctx, fmt.Sprintf("%T", store), store, applyOptions(optFns))
}

func connect(ctx context.Context, uri string, store blobstore.ConditionalStore, o options) (*Connection, error) {
	if !o.skipReachable {
		if err := blobstore.Ping(ctx, store); err != nil {
			o.logger.ErrorContext(ctx, "storage root unreachable", "uri", uri, "error", err)
			return nil, newError(KindConnection, "connect", "", fmt.Errorf("%s: %w", uri, err))
		}
	}

	readerOpts := []fragment.ReaderOption{
		fragment.WithCacheSize(o.cacheSize),
		fragment.WithCacheBytes(o.cacheBytes),
	}
	if o.readBytesPerSec > 0 {
		readerOpts = append(readerOpts, fragment.WithReadRateLimit(o.readBytesPerSec, o.readBurstBytes))
	}

	return &Connection{
		uri:       uri,
		store:     store,
		manifests: manifest.NewManager(store),
		writer:    fragment.NewWriter(store, fragment.WithCompression(o.compression)),
		reader:    fragment.NewReader(store, readerOpts...),
		opts:      o,
	}, nil
}

// URI returns the storage root this connection was opened with.
func (c *Connection) URI() string { return c.uri }

// Store returns the underlying blob store.
func (c *Connection) Store() blobstore.ConditionalStore { return c.store }

// Table validates name and returns its location below the storage root.
// It performs no I/O.
func (c *Connection) Table(name string) (string, error) {
	if !tableNamePattern.MatchString(name) {
		return "", newError(KindInvalidArgument, "table", name, fmt.Errorf("invalid table name %q", name))
	}
	return name, nil
}

// TableNames lists the tables with at least one published manifest.
func (c *Connection) TableNames(ctx context.Context) ([]string, error) {
	names, err := c.store.List(ctx, "")
	if err != nil {
		return nil, newError(KindStorageRead, "table_names", "", err)
	}

	seen := make(map[string]struct{})
	for _, name := range names {
		table, _, ok := manifest.ParseName(name)
		if !ok || !tableNamePattern.MatchString(table) {
			continue
		}
		seen[table] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// Open returns a handle to an existing table.
func (c *Connection) Open(ctx context.Context, name string) (*Table, error) {
	loc, err := c.Table(name)
	if err != nil {
		return nil, err
	}

	man, err := c.manifests.ReadCurrent(ctx, loc)
	if err != nil {
		return nil, translateError("open", name, err)
	}
	return newTable(c, name, loc, man, false), nil
}

// Create publishes version 0 of a new, empty table.
func (c *Connection) Create(ctx context.Context, name string, s *schema.Schema, optFns ...CreateOption) (*Table, error) {
	loc, err := c.Table(name)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, newError(KindInvalidSchema, "create", name, schema.ErrInvalidSchema)
	}

	co := createOptions{metric: distance.MetricL2}
	for _, fn := range optFns {
		fn(&co)
	}

	man, err := c.manifests.CreateInitial(ctx, loc, s, co.metric)
	c.opts.logger.LogCreate(ctx, name, err)
	if err != nil {
		return nil, translateError("create", name, err)
	}
	return newTable(c, name, loc, man, false), nil
}

// OpenOrCreate opens name, creating it with s if it does not exist. A create
// that loses the race against another creator opens the winner's table.
//
// An existing table with a different schema yields ErrSchemaMismatch.
func (c *Connection) OpenOrCreate(ctx context.Context, name string, s *schema.Schema, optFns ...CreateOption) (*Table, error) {
	t, err := c.Open(ctx, name)
	if errors.Is(err, ErrTableNotFound) {
		t, err = c.Create(ctx, name, s, optFns...)
		if errors.Is(err, ErrTableAlreadyExists) {
			t, err = c.Open(ctx, name)
		}
	}
	if err != nil {
		return nil, err
	}

	if s != nil && !t.Schema().Equal(s) {
		return nil, newError(KindSchemaMismatch, "open_or_create", name,
			fmt.Errorf("%w: table has %s, requested %s", schema.ErrSchemaMismatch, t.Schema(), s))
	}
	return t, nil
}
