// Package storage writes ledger snapshots to an object store.
package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore is the minimal surface snapshot export needs.
type ObjectStore interface {
	// Put stores the object under key, replacing any previous content.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error
	// List returns objects whose key starts with prefix, newest first.
	List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error)
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Config holds S3 compatible connection settings.
type Config struct {
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}
