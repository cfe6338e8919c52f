package storage

import (
	"context"
	"io"
	"time"
)

type Uploader interface {
	// Upload stores r under objectName and returns the key to persist.
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader, size int64) (storedPath string, err error)
}

type Signer interface {
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}

type Downloader interface {
	Download(ctx context.Context, objectName string) (io.ReadCloser, error)
}

type Remover interface {
	Delete(ctx context.Context, objectName string) error
}

// ObjectStore is the private bucket holding uploaded resumes.
type ObjectStore interface {
	Uploader
	Signer
	Downloader
	Remover
}

var (
	_ ObjectStore = (*GCSStore)(nil)
	_ ObjectStore = (*MinIOStore)(nil)
)
