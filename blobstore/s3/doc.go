// Package s3 provides Amazon S3 implementations of blobstore.ConditionalStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("lancedb/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	conn, err := vectable.ConnectStore(store)
//
// # Features
//
//   - Range reads for fragment access
//   - Multipart uploads for large fragments
//   - Conditional writes (If-None-Match) for manifest commits
//   - DynamoDB-coordinated commits (DDBCommitStore) for stores without conditional writes
//   - Automatic pagination for listing
package s3
