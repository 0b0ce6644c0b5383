package permission

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCatalogCacheSize = 1024
	defaultCatalogCacheTTL  = time.Minute
)

// CachedCatalog is a per-process read-through cache in front of a
// [Catalog]. Catalog data changes rarely; TTL bounds how stale a read can
// be. Errors are never cached. AllIncludes always reads through.
type CachedCatalog struct {
	next Catalog

	roles     *expirable.LRU[string, Role]
	rolePerms *expirable.LRU[string, []string]
	includes  *expirable.LRU[string, []string]
	tiers     *expirable.LRU[string, MembershipTier]
	tierPerms *expirable.LRU[string, []string]
}

var _ Catalog = (*CachedCatalog)(nil)

// NewCachedCatalog wraps next. size <= 0 and ttl <= 0 fall back to 1024
// entries per table and one minute.
func NewCachedCatalog(next Catalog, size int, ttl time.Duration) *CachedCatalog {
	if size <= 0 {
		size = defaultCatalogCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCatalogCacheTTL
	}
	return &CachedCatalog{
		next:      next,
		roles:     expirable.NewLRU[string, Role](size, nil, ttl),
		rolePerms: expirable.NewLRU[string, []string](size, nil, ttl),
		includes:  expirable.NewLRU[string, []string](size, nil, ttl),
		tiers:     expirable.NewLRU[string, MembershipTier](size, nil, ttl),
		tierPerms: expirable.NewLRU[string, []string](size, nil, ttl),
	}
}

func tierKey(group, tier string) string {
	return group + "\x00" + tier
}

func (c *CachedCatalog) Role(ctx context.Context, key string) (Role, error) {
	if role, ok := c.roles.Get(key); ok {
		return role, nil
	}
	role, err := c.next.Role(ctx, key)
	if err != nil {
		return Role{}, err
	}
	c.roles.Add(key, role)
	return role, nil
}

// RolePermissions caches per role, so a cold lookup of n roles costs n
// reads of the wrapped catalog.
func (c *CachedCatalog) RolePermissions(ctx context.Context, roleKeys []string) ([]string, error) {
	var out []string
	for _, key := range roleKeys {
		perms, ok := c.rolePerms.Get(key)
		if !ok {
			loaded, err := c.next.RolePermissions(ctx, []string{key})
			if err != nil {
				return nil, err
			}
			perms = slices.Clone(loaded)
			c.rolePerms.Add(key, perms)
		}
		out = append(out, perms...)
	}
	return out, nil
}

func (c *CachedCatalog) DirectIncludes(ctx context.Context, roleKey string) ([]string, error) {
	if includes, ok := c.includes.Get(roleKey); ok {
		return slices.Clone(includes), nil
	}
	includes, err := c.next.DirectIncludes(ctx, roleKey)
	if err != nil {
		return nil, err
	}
	c.includes.Add(roleKey, slices.Clone(includes))
	return includes, nil
}

func (c *CachedCatalog) AllIncludes(ctx context.Context) (map[string][]string, error) {
	return c.next.AllIncludes(ctx)
}

func (c *CachedCatalog) Tier(ctx context.Context, group, tier string) (MembershipTier, error) {
	k := tierKey(group, tier)
	if t, ok := c.tiers.Get(k); ok {
		return t, nil
	}
	t, err := c.next.Tier(ctx, group, tier)
	if err != nil {
		return MembershipTier{}, err
	}
	c.tiers.Add(k, t)
	return t, nil
}

func (c *CachedCatalog) TierPermissions(ctx context.Context, group, tier string) ([]string, error) {
	k := tierKey(group, tier)
	if perms, ok := c.tierPerms.Get(k); ok {
		return slices.Clone(perms), nil
	}
	perms, err := c.next.TierPermissions(ctx, group, tier)
	if err != nil {
		return nil, err
	}
	c.tierPerms.Add(k, slices.Clone(perms))
	return perms, nil
}

// Purge drops every cached entry.
func (c *CachedCatalog) Purge() {
	c.roles.Purge()
	c.rolePerms.Purge()
	c.includes.Purge()
	c.tiers.Purge()
	c.tierPerms.Purge()
}
