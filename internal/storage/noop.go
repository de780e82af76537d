package storage

import (
	"context"
	"time"
)

// NoopStore devolve erro em todas as operações, sinalizando que o recurso não está disponível.
type NoopStore struct{}

// Upload sempre retorna ErrNotConfigured.
func (NoopStore) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	return nil, ErrNotConfigured
}

// PresignGet sempre retorna ErrNotConfigured.
func (NoopStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "", ErrNotConfigured
}

// Delete sempre retorna ErrNotConfigured.
func (NoopStore) Delete(ctx context.Context, key string) error {
	return ErrNotConfigured
}
