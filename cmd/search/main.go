// Command search is the AWS Lambda entry point that returns the nearest
// images of a collection.
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
		log.Fatalf("search: %v", err)
	}
	logger := cfg.Logger()

	conn, err := vectable.Connect(context.Background(), cfg.URI, cfg.Options(logger)...)
	if err != nil {
		log.Fatalf("search: %v", err)
	}

	h := handler.New(conn,
		handler.WithDefaultK(cfg.DefaultK),
		handler.WithLogger(logger),
	)
	lambda.Start(searchFunc(h))
}

func searchFunc(h *handler.Handler) func(context.Context, handler.SearchRequest) (handler.SearchResponse, error) {
	return func(ctx context.Context, req handler.SearchRequest) (handler.SearchResponse, error) {
		return h.Search(withLambdaRequestID(ctx), req)
	}
}

func withLambdaRequestID(ctx context.Context) context.Context {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return handler.WithRequestID(ctx, lc.AwsRequestID)
	}
	return ctx
}
