// Package storage guarda os arquivos dos documentos em um bucket compatível com S3.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured indica ausência de backend de armazenamento.
var ErrNotConfigured = errors.New("storage: backend não configurado")

// UploadInput representa uma operação de upload simples.
type UploadInput struct {
	Key          string
	Body         []byte
	ContentType  string
	CacheControl string
}

// UploadResult descreve o artefato persistido.
type UploadResult struct {
	Key  string
	URL  string
	ETag string
}

// Store define o comportamento exigido do armazenamento de blobs.
type Store interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}
