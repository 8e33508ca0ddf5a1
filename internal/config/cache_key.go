package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

// CacheKey namespaces all Redis key builders.
var CacheKey = &CacheKeyStruct{}

// StudentSessionKey returns the cache key for a student's login session.
func (r *CacheKeyStruct) StudentSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}
