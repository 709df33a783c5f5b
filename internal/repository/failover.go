package repository

import (
	"bytes"
	"context"
	"sync"
	"time"

	"salon/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverCacheRepository serves from primary until it errors, then from
// fallback, retrying primary once per recoveryInterval.
// Keys without a TTL written or deleted during an outage are replayed to
// primary before it serves again, so it never returns their old values.
type FailoverCacheRepository struct {
	primary  domain.CacheStore
	fallback domain.CacheStore
	logger   *zerolog.Logger

	mu        sync.Mutex
	isDown    bool
	lastCheck time.Time
	now       func() time.Time
	// nil value means the key was deleted
	pending map[string][]byte
}

func NewFailoverCacheRepository(primary, fallback domain.CacheStore, logger *zerolog.Logger) *FailoverCacheRepository {
	return &FailoverCacheRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
		pending:  make(map[string][]byte),
	}
}

// usePrimary reports whether the next call should go to primary. A call made
// while primary is marked down first replays the outage writes.
func (r *FailoverCacheRepository) usePrimary(ctx context.Context) bool {
	r.mu.Lock()
	if !r.isDown {
		r.mu.Unlock()
		return true
	}
	if r.now().Sub(r.lastCheck) <= recoveryInterval {
		r.mu.Unlock()
		return false
	}
	r.lastCheck = r.now()
	r.mu.Unlock()

	if err := r.replay(ctx); err != nil {
		r.markResult(err)
		return false
	}
	return true
}

func (r *FailoverCacheRepository) replay(ctx context.Context) error {
	r.mu.Lock()
	writes := make(map[string][]byte, len(r.pending))
	for k, v := range r.pending {
		writes[k] = v
	}
	r.mu.Unlock()

	for key, value := range writes {
		var err error
		if value == nil {
			err = r.primary.Delete(ctx, key)
		} else {
			err = r.primary.Set(ctx, key, value, 0)
		}
		if err != nil {
			return err
		}
		r.mu.Lock()
		if cur, ok := r.pending[key]; ok && bytes.Equal(cur, value) && (cur == nil) == (value == nil) {
			delete(r.pending, key)
		}
		r.mu.Unlock()
	}
	return nil
}

func (r *FailoverCacheRepository) remember(key string, value []byte) {
	r.mu.Lock()
	r.pending[key] = value
	r.mu.Unlock()
}

func (r *FailoverCacheRepository) markResult(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		if r.isDown {
			r.logger.Info().Msg("Primary cache repository recovered")
		}
		r.isDown = false
		return
	}
	if !r.isDown {
		r.logger.Error().Err(err).Msg("Primary cache repository failed, falling back to memory")
	}
	r.isDown = true
	r.lastCheck = r.now()
}

// IsDown reports whether calls currently go to the fallback.
func (r *FailoverCacheRepository) IsDown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isDown
}

func (r *FailoverCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	if r.usePrimary(ctx) {
		val, err := r.primary.Get(ctx, key)
		r.markResult(err)
		if err == nil {
			return val, nil
		}
	}
	return r.fallback.Get(ctx, key)
}

func (r *FailoverCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.usePrimary(ctx) {
		err := r.primary.Set(ctx, key, value, ttl)
		r.markResult(err)
		if err == nil {
			return nil
		}
	}
	if ttl <= 0 {
		if value == nil {
			value = []byte{}
		}
		r.remember(key, value)
	} else {
		r.mu.Lock()
		delete(r.pending, key)
		r.mu.Unlock()
	}
	return r.fallback.Set(ctx, key, value, ttl)
}

// Delete clears fallback as well as primary.
func (r *FailoverCacheRepository) Delete(ctx context.Context, keys ...string) error {
	if r.usePrimary(ctx) {
		err := r.primary.Delete(ctx, keys...)
		r.markResult(err)
		if err != nil {
			for _, k := range keys {
				r.remember(k, nil)
			}
		}
	} else {
		for _, k := range keys {
			r.remember(k, nil)
		}
	}
	return r.fallback.Delete(ctx, keys...)
}

func (r *FailoverCacheRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary(ctx) {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		r.markResult(err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
