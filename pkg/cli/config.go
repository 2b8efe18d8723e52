package cli

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries the tunables for the interactive session. Values come from
// the environment (optionally via a .env file in the working directory):
//
//	BLURKIT_THREADS        worker pool size (0 = auto-detect)
//	BLURKIT_CACHE_ENTRIES  max cached results
//	BLURKIT_CACHE_MB       cache byte budget in MiB
//	PREVIEW_DEBUG          1 enables preview protocol debugging
type Config struct {
	Threads      int
	CacheEntries int
	CacheBytes   int64
}

// LoadConfig reads the optional .env file and the environment. Missing or
// malformed values fall back to defaults.
func LoadConfig() Config {
	// .env is optional; ignore a missing file
	_ = godotenv.Load()

	cfg := Config{
		Threads:      0, // auto
		CacheEntries: 32,
		CacheBytes:   256 << 20,
	}
	if v, ok := envInt("BLURKIT_THREADS"); ok {
		cfg.Threads = v
	}
	if v, ok := envInt("BLURKIT_CACHE_ENTRIES"); ok && v > 0 {
		cfg.CacheEntries = v
	}
	if v, ok := envInt("BLURKIT_CACHE_MB"); ok && v > 0 {
		cfg.CacheBytes = int64(v) << 20
	}

	debug := os.Getenv("PREVIEW_DEBUG")
	if debug == "1" || debug == "true" {
		previewDebug = true
	}
	return cfg
}

func envInt(key string) (int, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}
