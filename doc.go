// Package vectable provides an embedded vector table engine on object storage.
//
// A table is a lineage of immutable manifests. Each manifest lists immutable
// columnar fragments, and each fragment holds one fixed-dimension float32
// vector column next to scalar payload columns. Writers append a fragment and
// publish the next manifest with a conditional create, so any number of
// processes may write to the same table without a lock service.
//
// # Quick Start
//
//	ctx := context.Background()
//	conn, _ := vectable.Connect(ctx, "s3://my-bucket/lancedb")
//
//	s := schema.MustDefine(
//	    schema.Vector("vector", 1024, schema.WithNullElements()),
//	    schema.String("image_location"),
//	    schema.String("image_description"),
//	)
//	table, _ := conn.OpenOrCreate(ctx, "images", s)
//
//	_ = table.Add(ctx, schema.NewRow(vec, map[string]schema.Value{
//	    "image_location":    "s3://images/cat.png",
//	    "image_description": "a cat",
//	}))
//
//	results, _ := table.Search(ctx, query, 2)
//	for _, r := range results {
//	    fmt.Println(r.String("image_location"), r.Distance)
//	}
//
// # Storage Roots
//
//	memory://name                    process-wide in-memory store (tests)
//	file:///var/lib/vectable         local directory
//	s3://bucket/prefix               Amazon S3 (If-None-Match commits)
//	minio://host:9000/bucket/prefix  MinIO
//
// S3-compatible stores without conditional writes can commit through
// DynamoDB with WithDynamoDBCommitTable.
//
// # Concurrency
//
// Add writes its fragment first and then publishes version N+1 on top of the
// current version N. If another writer took N+1, Add re-reads the current
// manifest and retries with jittered backoff, up to WithMaxCommitRetries
// times, before failing with ErrWriteContention. The fragment of a failed Add
// is left unreferenced and is never visible.
//
// Search reads the current manifest once and scans exactly its fragments.
// It never blocks writers and is never blocked by them.
//
// # Time Travel
//
//	versions, _ := table.Versions(ctx)
//	old, _ := table.Checkout(ctx, versions[0])
//	results, _ := old.Search(ctx, query, 10)
package vectable
