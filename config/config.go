package config

import (
	"strings"

	"github.com/spf13/viper"
)

// AppConfig holds every runtime setting of the screener. Values come from
// the environment with defaults, so a bare start works against a local API
// and without Redis.
type AppConfig struct {
	API    APIConfig
	Cache  CacheConfig
	Server ServerConfig
	Scan   ScanConfig

	LogLevel string
}

type APIConfig struct {
	BaseURL         string
	UseLocalCandles bool
}

type CacheConfig struct {
	RedisURL string
}

type ServerConfig struct {
	Addr string
}

type ScanConfig struct {
	Workers int
}

func Load() *AppConfig {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("API_URL", "http://localhost:4001")
	v.SetDefault("USE_LOCAL_CANDLES", true)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("SCAN_WORKERS", 8)

	return &AppConfig{
		API: APIConfig{
			BaseURL:         v.GetString("API_URL"),
			UseLocalCandles: v.GetBool("USE_LOCAL_CANDLES"),
		},
		Cache: CacheConfig{
			RedisURL: v.GetString("REDIS_URL"),
		},
		Server: ServerConfig{
			Addr: v.GetString("SERVER_ADDR"),
		},
		Scan: ScanConfig{
			Workers: v.GetInt("SCAN_WORKERS"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}
}
