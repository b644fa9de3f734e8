// Package handler implements the ingest and search operations behind the
// serverless entry points and the CLI.
package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hupe1980/vectable"
	"github.com/hupe1980/vectable/distance"
	"github.com/hupe1980/vectable/schema"
)

// Column names of an image table.
const (
	ColumnVector           = "vector"
	ColumnImageLocation    = "image_location"
	ColumnImageDescription = "image_description"
)

const (
	DefaultDimension = 1024
	DefaultK         = 2
)

// ImageSchema returns the schema of an image table with vectors of width dim.
// Vector elements may be null.
func ImageSchema(dim int) (*schema.Schema, error) {
	return schema.Define(
		schema.Vector(ColumnVector, dim, schema.WithNullElements()),
		schema.String(ColumnImageLocation),
		schema.String(ColumnImageDescription),
	)
}

type IngestRequest struct {
	Collection       string     `json:"collection"`
	Vector           []*float32 `json:"vector"`
	ImageLocation    string     `json:"image_location"`
	ImageDescription string     `json:"image_description"`
}

type IngestResponse struct {
	RequestID string `json:"req_id"`
	Message   string `json:"msg"`
	Version   uint64 `json:"version"`
}

type SearchRequest struct {
	Collection string    `json:"collection"`
	Vector     []float32 `json:"vector"`
	// K defaults to 2.
	K int `json:"k,omitempty"`
}

type SearchResult struct {
	ImageLocation    string  `json:"image_location"`
	ImageDescription string  `json:"image_description"`
	Distance         float32 `json:"distance"`
}

type SearchResponse struct {
	RequestID string         `json:"req_id"`
	Top1      string         `json:"top1"`
	Top2      string         `json:"top2"`
	Results   []SearchResult `json:"results"`
}

// Error is the structured failure returned to callers.
type Error struct {
	RequestID string `json:"req_id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	cause     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Handler runs ingest and search against one connection.
type Handler struct {
	conn      *vectable.Connection
	dimension int
	defaultK  int
	metric    distance.Metric
	logger    *vectable.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithDimension sets the vector width of tables created by Ingest.
func WithDimension(dim int) Option {
	return func(h *Handler) { h.dimension = dim }
}

// WithDefaultK sets the k used when a search request omits it.
func WithDefaultK(k int) Option {
	return func(h *Handler) { h.defaultK = k }
}

// WithMetric sets the default metric of tables created by Ingest.
func WithMetric(m distance.Metric) Option {
	return func(h *Handler) { h.metric = m }
}

// WithLogger sets the request logger.
func WithLogger(l *vectable.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

func New(conn *vectable.Connection, opts ...Option) *Handler {
	h := &Handler{
		conn:      conn,
		dimension: DefaultDimension,
		defaultK:  DefaultK,
		metric:    distance.MetricL2,
		logger:    vectable.NoopLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Ingest appends one image row, creating the collection on first use.
func (h *Handler) Ingest(ctx context.Context, req IngestRequest) (IngestResponse, error) {
	reqID := RequestID(ctx)
	log := h.logger.WithRequestID(reqID).WithTable(req.Collection)

	if req.Collection == "" {
		return IngestResponse{}, invalid(reqID, "collection is required")
	}

	s, err := ImageSchema(h.dimension)
	if err != nil {
		return IngestResponse{}, failure(reqID, err)
	}

	table, err := h.conn.OpenOrCreate(ctx, req.Collection, s, vectable.WithDefaultMetric(h.metric))
	if err != nil {
		log.ErrorContext(ctx, "open collection failed", "error", err)
		return IngestResponse{}, failure(reqID, err)
	}

	row := schema.RowFromNullable(req.Vector, map[string]schema.Value{
		ColumnImageLocation:    req.ImageLocation,
		ColumnImageDescription: req.ImageDescription,
	})
	if err := table.Add(ctx, row); err != nil {
		log.ErrorContext(ctx, "add failed", "error", err)
		return IngestResponse{}, failure(reqID, err)
	}

	log.InfoContext(ctx, "row added", "version", table.Version())
	return IngestResponse{
		RequestID: reqID,
		Message:   fmt.Sprintf("Collection %s.", req.Collection),
		Version:   table.Version(),
	}, nil
}

// Search returns the closest images of an existing collection.
func (h *Handler) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	reqID := RequestID(ctx)
	log := h.logger.WithRequestID(reqID).WithTable(req.Collection)

	if req.Collection == "" {
		return SearchResponse{}, invalid(reqID, "collection is required")
	}
	k := req.K
	if k == 0 {
		k = h.defaultK
	}

	table, err := h.conn.Open(ctx, req.Collection)
	if err != nil {
		log.ErrorContext(ctx, "open collection failed", "error", err)
		return SearchResponse{}, failure(reqID, err)
	}

	results, err := table.Search(ctx, req.Vector, k,
		vectable.WithColumns(ColumnImageLocation, ColumnImageDescription))
	if err != nil {
		log.ErrorContext(ctx, "search failed", "error", err)
		return SearchResponse{}, failure(reqID, err)
	}

	resp := SearchResponse{
		RequestID: reqID,
		Results:   make([]SearchResult, len(results)),
	}
	for i, r := range results {
		resp.Results[i] = SearchResult{
			ImageLocation:    r.String(ColumnImageLocation),
			ImageDescription: r.String(ColumnImageDescription),
			Distance:         r.Distance,
		}
	}
	if len(resp.Results) > 0 {
		resp.Top1 = resp.Results[0].ImageLocation
	}
	if len(resp.Results) > 1 {
		resp.Top2 = resp.Results[1].ImageLocation
	}

	log.InfoContext(ctx, "search completed", "k", k, "results", len(results), "version", table.Version())
	return resp, nil
}

func invalid(reqID, msg string) *Error {
	return &Error{
		RequestID: reqID,
		Kind:      vectable.KindInvalidArgument.String(),
		Message:   msg,
		cause:     vectable.ErrInvalidArgument,
	}
}

func failure(reqID string, err error) *Error {
	var herr *Error
	if errors.As(err, &herr) {
		return herr
	}
	return &Error{
		RequestID: reqID,
		Kind:      vectable.KindOf(err).String(),
		Message:   err.Error(),
		cause:     err,
	}
}

type requestIDKey struct{}

// WithRequestID attaches a request id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id of ctx, or a fresh random one.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
