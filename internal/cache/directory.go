package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/logger"
	"github.com/thereayou/loci-chat/internal/services"
)

const directoryPrefix = "directory:user:"

// Directory is a read-through cache in front of a UserDirectory. Redis
// failures fall back to the backend.
type Directory struct {
	backend services.UserDirectory
	client  *redis.Client
	ttl     time.Duration
}

func NewDirectory(backend services.UserDirectory, client *redis.Client, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Directory{backend: backend, client: client, ttl: ttl}
}

func userKey(id uuid.UUID) string {
	return directoryPrefix + id.String()
}

func (d *Directory) GetUser(ctx context.Context, id uuid.UUID) (*services.DirectoryUser, error) {
	key := userKey(id)

	data, err := d.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var user services.DirectoryUser
		if jerr := json.Unmarshal(data, &user); jerr == nil {
			return &user, nil
		}
		logger.Ctx(ctx).Warn().Str(logger.FieldUserID, id.String()).Msg("corrupt directory cache entry")
	case !errors.Is(err, redis.Nil):
		logger.Ctx(ctx).Warn().Err(err).Msg("directory cache read failed")
	}

	user, err := d.backend.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := d.store(ctx, key, user); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("directory cache write failed")
	}
	return user, nil
}

func (d *Directory) store(ctx context.Context, key string, user *services.DirectoryUser) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	if err := d.client.Set(ctx, key, data, d.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

// SetOnline writes through to the backend and drops the cached entry.
func (d *Directory) SetOnline(ctx context.Context, id uuid.UUID, online bool) error {
	if err := d.backend.SetOnline(ctx, id, online); err != nil {
		return err
	}
	d.Invalidate(ctx, id)
	return nil
}

// Invalidate drops a cached user, e.g. after a profile or block list change.
func (d *Directory) Invalidate(ctx context.Context, id uuid.UUID) {
	if err := d.client.Del(ctx, userKey(id)).Err(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str(logger.FieldUserID, id.String()).Msg("directory cache invalidate failed")
	}
}
