package vectable_test

import (
	"context"
	"fmt"

	"github.com/hupe1980/vectable"
	"github.com/hupe1980/vectable/schema"
)

func Example() {
	ctx := context.Background()

	conn, err := vectable.Connect(ctx, "memory://example")
	if err != nil {
		panic(err)
	}

	s := schema.MustDefine(
		schema.Vector("vector", 3),
		schema.String("image_location"),
		schema.String("image_description"),
	)
	table, err := conn.OpenOrCreate(ctx, "images", s)
	if err != nil {
		panic(err)
	}

	err = table.Add(ctx,
		schema.NewRow([]float32{1, 0, 0}, map[string]schema.Value{
			"image_location":    "s3://images/cat.png",
			"image_description": "a cat",
		}),
		schema.NewRow([]float32{0, 1, 0}, map[string]schema.Value{
			"image_location":    "s3://images/dog.png",
			"image_description": "a dog",
		}),
	)
	if err != nil {
		panic(err)
	}

	results, err := table.Search(ctx, []float32{0.9, 0.1, 0}, 2)
	if err != nil {
		panic(err)
	}
	for _, r := range results {
		fmt.Printf("%s %.2f\n", r.String("image_description"), r.Distance)
	}
	fmt.Println("version", table.Version())

	// Output:
	// a cat 0.02
	// a dog 1.62
	// version 1
}
