package rulecache

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"LookTrainer/internal/domain"
	"LookTrainer/internal/ports"
)

const latestKey = "latest"

// Cache retains compiled rulesets by version so a downstream filter can
// re-fetch the exact version it pinned.
type Cache struct {
	cache *cache.Cache
}

var _ ports.RulesetSink = (*Cache)(nil)

// New creates a cache whose entries live for ttl and are purged every ttl/4.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{cache: cache.New(ttl, ttl/4)}
}

// Put stores the ruleset under its version and as the latest one.
func (c *Cache) Put(_ context.Context, ruleset domain.CompiledRuleset) error {
	c.cache.Set(key(ruleset.Version), ruleset, cache.DefaultExpiration)
	if latest, ok := c.Latest(); !ok || ruleset.Version >= latest.Version {
		c.cache.Set(latestKey, ruleset, cache.DefaultExpiration)
	}
	return nil
}

// Get returns the ruleset compiled as version.
func (c *Cache) Get(version int64) (domain.CompiledRuleset, bool) {
	if x, found := c.cache.Get(key(version)); found {
		return x.(domain.CompiledRuleset), true
	}
	return domain.CompiledRuleset{}, false
}

// Latest returns the highest version seen so far.
func (c *Cache) Latest() (domain.CompiledRuleset, bool) {
	if x, found := c.cache.Get(latestKey); found {
		return x.(domain.CompiledRuleset), true
	}
	return domain.CompiledRuleset{}, false
}

func key(version int64) string {
	return "v" + strconv.FormatInt(version, 10)
}
