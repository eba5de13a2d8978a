package storage

import (
	"context"
	"io"
)

// UploadResult описывает загруженный объект.
type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader хранит логотипы турниров, игроков и команд.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
}
