package rules

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pledgeforge/backerstore-backend/pkg/logger"
)

const (
	// CategoryCartLimits holds the cart quantity and amount bounds.
	CategoryCartLimits = "cart.limits"

	// StrategyCategoryPrefix prefixes per-classification strategy overrides,
	// e.g. "strategy.collected".
	StrategyCategoryPrefix = "strategy."

	KeyPricingType   = "pricing_type"
	KeyPaymentMethod = "payment_method"

	keyMinQuantity        = "min_quantity"
	keyMaxPerItem         = "max_per_item"
	keyMaxDistinctItems   = "max_distinct_items"
	keyMaxOrderTotalCents = "max_order_total_cents"

	defaultCacheTTL = 30 * time.Second
)

// Bounds are the cart limits enforced by the pricing validator.
type Bounds struct {
	MinQuantity        int64
	MaxPerItem         int64
	MaxDistinctItems   int64
	MaxOrderTotalCents int64
}

// DefaultBounds apply when the rule store has no override rows.
var DefaultBounds = Bounds{
	MinQuantity:        1,
	MaxPerItem:         10,
	MaxDistinctItems:   25,
	MaxOrderTotalCents: 1_000_000,
}

type ruleCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(scope string, parts ...string) string
}

// Store exposes typed rule reads with defaults. Values are cached in redis
// for the configured TTL; readers tolerate up to one cache window of
// staleness, and any store outage degrades to the caller's default.
type Store interface {
	GetString(ctx context.Context, category, key string) (string, bool)
	GetInt(ctx context.Context, category, key string) (int64, bool)
	Bounds(ctx context.Context) Bounds
}

type store struct {
	repo     Repository
	cache    ruleCache
	cacheTTL time.Duration
	logger   *logger.Logger
}

// NewStore builds the cached rule store. The cache is optional; without one
// every read goes to the database.
func NewStore(repo Repository, cache ruleCache, cacheTTL time.Duration, logg *logger.Logger) (Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("rule repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &store{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logg,
	}, nil
}

// GetString returns the rule value, reporting false when the rule is absent
// or the store is unavailable. Callers supply their own defaults.
func (s *store) GetString(ctx context.Context, category, key string) (string, bool) {
	if cached, ok := s.cacheGet(ctx, category, key); ok {
		return cached, true
	}

	rule, err := s.repo.Find(ctx, category, key)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.warn(ctx, category, key, "rule store read failed, using default", err)
		}
		return "", false
	}

	s.cacheSet(ctx, category, key, rule.Value)
	return rule.Value, true
}

// GetInt parses the rule value as an integer; unparsable values behave like
// missing rules so a bad row cannot break checkout.
func (s *store) GetInt(ctx context.Context, category, key string) (int64, bool) {
	raw, ok := s.GetString(ctx, category, key)
	if !ok {
		return 0, false
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.warn(ctx, category, key, "rule value is not an integer, using default", err)
		return 0, false
	}
	return parsed, true
}

// Bounds assembles the cart limits, falling back per field.
func (s *store) Bounds(ctx context.Context) Bounds {
	bounds := DefaultBounds
	if v, ok := s.GetInt(ctx, CategoryCartLimits, keyMinQuantity); ok && v > 0 {
		bounds.MinQuantity = v
	}
	if v, ok := s.GetInt(ctx, CategoryCartLimits, keyMaxPerItem); ok && v > 0 {
		bounds.MaxPerItem = v
	}
	if v, ok := s.GetInt(ctx, CategoryCartLimits, keyMaxDistinctItems); ok && v > 0 {
		bounds.MaxDistinctItems = v
	}
	if v, ok := s.GetInt(ctx, CategoryCartLimits, keyMaxOrderTotalCents); ok && v > 0 {
		bounds.MaxOrderTotalCents = v
	}
	return bounds
}

// StrategyCategory returns the rule category for a classification.
func StrategyCategory(classification string) string {
	return StrategyCategoryPrefix + classification
}

func (s *store) cacheGet(ctx context.Context, category, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	value, err := s.cache.Get(ctx, s.cache.CacheKey("rules", category, key))
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.warn(ctx, category, key, "rule cache read failed", err)
		}
		return "", false
	}
	return value, true
}

func (s *store) cacheSet(ctx context.Context, category, key, value string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.CacheKey("rules", category, key), value, s.cacheTTL); err != nil {
		s.warn(ctx, category, key, "rule cache write failed", err)
	}
}

func (s *store) warn(ctx context.Context, category, key, msg string, err error) {
	ctx = s.logger.WithFields(ctx, map[string]any{
		"rule_category": category,
		"rule_key":      key,
		"error":         err.Error(),
	})
	s.logger.Warn(ctx, msg)
}
