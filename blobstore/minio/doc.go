// Package minio provides a blobstore.ConditionalStore implementation using the MinIO client.
//
// MinIO is an S3-compatible object storage system. This package uses the
// official MinIO Go client library and also works with other S3-compatible
// storage systems like Ceph, SeaweedFS, and Garage, as long as they honor
// If-None-Match on PUT. Stores that do not can be wrapped in
// s3.DDBCommitStore.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "lancedb/")
//	conn, err := vectable.ConnectStore(store)
package minio
