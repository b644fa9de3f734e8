// Command ingest is the AWS Lambda entry point that appends one image
// embedding to a collection.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/hupe1980/vectable"
	"github.com/hupe1980/vectable/handler"
	"github.com/hupe1980/vectable/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("ingest: %v", err)
	}
	logger := cfg.Logger()

	conn, err := vectable.Connect(context.Background(), cfg.URI, cfg.Options(logger)...)
	if err != nil {
		log.Fatalf("ingest: %v", err)
	}

	h := handler.New(conn,
		handler.WithDimension(cfg.Dimension),
		handler.WithMetric(cfg.DistanceMetric()),
		handler.WithLogger(logger),
	)
	lambda.Start(ingestFunc(h))
}

func ingestFunc(h *handler.Handler) func(context.Context, handler.IngestRequest) (handler.IngestResponse, error) {
	return func(ctx context.Context, req handler.IngestRequest) (handler.IngestResponse, error) {
		return h.Ingest(withLambdaRequestID(ctx), req)
	}
}

func withLambdaRequestID(ctx context.Context) context.Context {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return handler.WithRequestID(ctx, lc.AwsRequestID)
	}
	return ctx
}
