// Package guard switches the process into test mode when imported, so cmd packages can
// be exercised without reaching real Redis or Postgres.
package guard

import (
	"os"
	"sync"
)

const (
	testModeEnv = "ODYSSEY_TEST_MODE"
	redisEnv    = "REDIS_ADDR"
	// unroutableRedis makes any accidental Redis dial fail fast.
	unroutableRedis = "127.0.0.1:0"
)

var once sync.Once

func init() {
	Enable()
}

// Enable sets test mode once. An explicit REDIS_ADDR is left untouched.
func Enable() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
		if os.Getenv(redisEnv) == "" {
			_ = os.Setenv(redisEnv, unroutableRedis)
		}
	})
}
