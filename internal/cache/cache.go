// Package cache is the invalidation collaborator for aggregate views.
// Values live in an in-process ristretto cache; prefix invalidation is
// tracked explicitly because ristretto has no key scan.
package cache

import (
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rs/zerolog/log"
)

const (
	TTLShort = 5 * time.Minute

	PrefixInvitation   = "invitation:"
	PrefixOrganization = "org:"
	PrefixUser         = "user:"
	PrefixStats        = "stats:"

	maxEntries = 10000
)

var (
	logger = log.With().Str("component", "cache").Logger()
)

type Cache struct {
	cache *ristretto.Cache[string, any]

	mu   sync.Mutex
	keys map[string]map[string]struct{} // prefix -> live keys
}

func New() *Cache {
	c, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create cache")
	}

	return &Cache{
		cache: c,
		keys:  make(map[string]map[string]struct{}),
	}
}

func (c *Cache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.cache.SetWithTTL(key, value, 1, ttl)
	c.cache.Wait()

	prefix := keyPrefix(key)
	c.mu.Lock()
	if c.keys[prefix] == nil {
		c.keys[prefix] = make(map[string]struct{})
	}
	c.keys[prefix][key] = struct{}{}
	c.mu.Unlock()
}

func (c *Cache) Delete(key string) {
	c.cache.Del(key)
	c.cache.Wait()

	prefix := keyPrefix(key)
	c.mu.Lock()
	delete(c.keys[prefix], key)
	c.mu.Unlock()
}

// InvalidatePrefix drops every key set under a prefix.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	keys := c.keys[prefix]
	delete(c.keys, prefix)
	c.mu.Unlock()

	for key := range keys {
		c.cache.Del(key)
	}
	c.cache.Wait()
}

// InvalidateInvitation drops the invitation's cached views plus the
// statistics aggregate; called after every committed transition.
func (c *Cache) InvalidateInvitation(id uint) {
	c.Delete(InvitationKey(id))
	c.InvalidatePrefix(PrefixStats)
}

// InvalidateOrganization drops organization views after provisioning.
func (c *Cache) InvalidateOrganization(id uint) {
	c.Delete(OrganizationKey(id))
	c.InvalidatePrefix(PrefixStats)
}

func (c *Cache) InvalidateUser(id uint) {
	c.Delete(UserKey(id))
	c.InvalidatePrefix(PrefixStats)
}

func InvitationKey(id uint) string {
	return PrefixInvitation + strconv.FormatUint(uint64(id), 10)
}

func OrganizationKey(id uint) string {
	return PrefixOrganization + strconv.FormatUint(uint64(id), 10)
}

func UserKey(id uint) string {
	return PrefixUser + strconv.FormatUint(uint64(id), 10)
}

func StatsKey(name string) string {
	return PrefixStats + name
}

func keyPrefix(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i+1]
		}
	}
	return key
}
