package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("BLURKIT_THREADS", "")
	t.Setenv("BLURKIT_CACHE_ENTRIES", "")
	t.Setenv("BLURKIT_CACHE_MB", "")

	cfg := LoadConfig()
	assert.Equal(t, 0, cfg.Threads)
	assert.Equal(t, 32, cfg.CacheEntries)
	assert.Equal(t, int64(256<<20), cfg.CacheBytes)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("BLURKIT_THREADS", "4")
	t.Setenv("BLURKIT_CACHE_ENTRIES", "8")
	t.Setenv("BLURKIT_CACHE_MB", "64")

	cfg := LoadConfig()
	assert.Equal(t, 4, cfg.Threads)
	assert.Equal(t, 8, cfg.CacheEntries)
	assert.Equal(t, int64(64<<20), cfg.CacheBytes)
}

func TestLoadConfigIgnoresGarbage(t *testing.T) {
	t.Setenv("BLURKIT_THREADS", "lots")
	t.Setenv("BLURKIT_CACHE_ENTRIES", "-3")
	t.Setenv("BLURKIT_CACHE_MB", "")

	cfg := LoadConfig()
	assert.Equal(t, 0, cfg.Threads)
	assert.Equal(t, 32, cfg.CacheEntries)
	assert.Equal(t, int64(256<<20), cfg.CacheBytes)
}
