// Package cache decorates the person directory with a Redis TTL cache on
// the name-prefix search. The matcher hits that search once per staged
// person, so repeated detection runs over similar batches are served from
// cache. Entries expire rather than being invalidated; duplicate detection
// tolerates slightly stale candidate lists because commit re-checks keys.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/internal/authoritative"
	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
)

const keyPrefix = "trrcms:person-prefix:"

// PersonDirectory wraps an authoritative directory with prefix-search
// caching. A nil redis client disables caching entirely.
type PersonDirectory struct {
	next   authoritative.PersonDirectory
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(next authoritative.PersonDirectory, client *redis.Client, ttl time.Duration, logger *slog.Logger) *PersonDirectory {
	return &PersonDirectory{next: next, client: client, ttl: ttl, logger: logger}
}

func (d *PersonDirectory) FindByNationalID(ctx context.Context, nationalID string) (*authoritative.Person, error) {
	// Exact-key lookups are already indexed; not worth caching.
	return d.next.FindByNationalID(ctx, nationalID)
}

func (d *PersonDirectory) GetPerson(ctx context.Context, id domain.EntityID) (*authoritative.Person, error) {
	return d.next.GetPerson(ctx, id)
}

func (d *PersonDirectory) SearchByNamePrefix(ctx context.Context, prefix string) ([]*authoritative.Person, error) {
	if d.client == nil {
		return d.next.SearchByNamePrefix(ctx, prefix)
	}

	key := keyPrefix + prefix
	if raw, err := d.client.Get(ctx, key).Bytes(); err == nil {
		var cached []*authoritative.Person
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	persons, err := d.next.SearchByNamePrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	// Cache failures degrade to uncached lookups; never fail the search.
	if raw, err := json.Marshal(persons); err == nil {
		if err := d.client.Set(ctx, key, raw, d.ttl).Err(); err != nil && d.logger != nil {
			d.logger.WarnContext(ctx, "prefix cache write failed", "error", err)
		}
	}
	return persons, nil
}
