package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// CacheTTL is how long catalog reads stay cached
const CacheTTL = 60 * time.Second

// Cache key prefixes, invalidated together on back-office writes
const (
	CacheProducts   = "catalog:products:"   // Product lists and details
	CacheCategories = "catalog:categories:" // Category tree
	CachePromotions = "catalog:promotions:" // Active promotions
	CacheSettings   = "catalog:settings:"   // Public settings
	CacheAdminUsers = "admin:users:"        // Back-office users table
)

// GetCache retrieves a value from Redis and unmarshals it into dest.
// A nil client is a permanent miss.
func GetCache(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	if rdb == nil {
		return false, nil // Caching disabled
	}
	val, err := rdb.Get(ctx, key).Result() // Get value from Redis
	if err == redis.Nil {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// SetCache sets a value in Redis with a specified TTL
func SetCache(ctx context.Context, rdb *redis.Client, key string, value any, ttl time.Duration) error {
	if rdb == nil {
		return nil // Caching disabled
	}
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// DeleteCache deletes a key from Redis
func DeleteCache(ctx context.Context, rdb *redis.Client, key string) error {
	if rdb == nil {
		return nil // Caching disabled
	}
	return rdb.Del(ctx, key).Err() // Delete key from Redis
}

// DeleteCachePrefix deletes every key under the given prefixes, walking the
// keyspace with SCAN so paginated entries are all caught
func DeleteCachePrefix(ctx context.Context, rdb *redis.Client, prefixes ...string) error {
	if rdb == nil {
		return nil // Caching disabled
	}
	for _, prefix := range prefixes {
		iter := rdb.Scan(ctx, 0, prefix+"*", 200).Iterator() // Iterate matching keys
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err // Scan failed
		}
		if len(keys) > 0 {
			if err := rdb.Del(ctx, keys...).Err(); err != nil {
				return err // Delete failed
			}
		}
	}
	return nil
}
