// Package minio stores hnswkit images in MinIO or any other S3-compatible
// object store (Ceph, Garage, SeaweedFS) through the minio-go client.
//
// Unlike the s3 package it needs no AWS configuration, which makes it the
// usual choice for self-hosted and air-gapped deployments:
//
//	store, err := minio.New(minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "indexes",
//	    Prefix:    "prod/",
//	})
//	if err != nil {
//	    return err
//	}
//	err = idx.Publish(ctx, store, "products/v1")
//
// Create streams into a single PutObject of unknown length, so an image file
// is never buffered in memory. An aborted or failed upload leaves no object.
package minio
