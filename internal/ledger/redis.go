package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mpcoop/portal/internal/auth"
)

// putScript cria o hash apenas se ainda não existir e agenda a remoção física
// para ARGV[3] (expiração somada à carência).
const putScript = `
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'owner', ARGV[1], 'valid', '1', 'expires_at', ARGV[2])
redis.call('PEXPIREAT', KEYS[1], ARGV[3])
return 1
`

// invalidateScript: -1 inexistente, -2 outro dono, 0 já inválido, 1 trocado agora.
const invalidateScript = `
local owner = redis.call('HGET', KEYS[1], 'owner')
if not owner then
  return -1
end
if owner ~= ARGV[1] then
  return -2
end
if redis.call('HGET', KEYS[1], 'valid') ~= '1' then
  return 0
end
redis.call('HSET', KEYS[1], 'valid', '0')
return 1
`

type redisCommander interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// RedisStore persiste registros como hashes com expiração nativa.
type RedisStore struct {
	redis redisCommander
}

// NewRedisStore cria store sobre um cliente go-redis.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client}
}

// RefreshRedisKey monta chave única do registro.
func RefreshRedisKey(id string) string {
	return fmt.Sprintf("refresh:%s", id)
}

// Put grava o registro atomicamente.
func (s *RedisStore) Put(ctx context.Context, rec Record) error {
	created, err := s.redis.Eval(ctx, putScript, []string{RefreshRedisKey(rec.ID)},
		rec.OwnerID, rec.ExpiresAt.UnixMilli(), rec.ExpiresAt.Add(ExpiredGrace).UnixMilli()).Int64()
	if err != nil {
		return err
	}
	if created != 1 {
		return fmt.Errorf("ledger: registro %s já existe", rec.ID)
	}
	return nil
}

// Get lê o hash do registro.
func (s *RedisStore) Get(ctx context.Context, id string) (Record, error) {
	fields, err := s.redis.HGetAll(ctx, RefreshRedisKey(id)).Result()
	if err != nil {
		return Record{}, err
	}
	if len(fields) == 0 {
		return Record{}, auth.ErrTokenNotFound
	}

	expiresMs, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("ledger: expires_at inválido para %s: %w", id, err)
	}

	return Record{
		ID:        id,
		OwnerID:   fields["owner"],
		Valid:     fields["valid"] == "1",
		ExpiresAt: time.UnixMilli(expiresMs).UTC(),
	}, nil
}

// Invalidate executa a troca condicional em um único script Lua.
func (s *RedisStore) Invalidate(ctx context.Context, id, ownerID string) (bool, error) {
	result, err := s.redis.Eval(ctx, invalidateScript, []string{RefreshRedisKey(id)}, ownerID).Int64()
	if err != nil {
		return false, err
	}

	switch result {
	case 1:
		return true, nil
	case 0:
		return false, nil
	case -1:
		return false, auth.ErrTokenNotFound
	case -2:
		return false, auth.ErrOwnerMismatch
	}
	return false, fmt.Errorf("ledger: resposta inesperada do redis: %d", result)
}
