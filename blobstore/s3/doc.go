// Package s3 provides an S3 implementation of the blobstore.BlobStore interface
// and a DynamoDB-backed blobstore.Committer.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("indexes/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	err = idx.Publish(ctx, store, "products/v1")
//
// # Features
//
//   - Range reads for efficient partial fetches
//   - Multipart uploads with CRC32C checksums
//   - Automatic pagination for listing
//   - Conditional DynamoDB writes for concurrent publishers
package s3
