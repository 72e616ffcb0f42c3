package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	require.Equal(t, ":8090", cfg.HTTPAddress)
	require.Equal(t, DirectoryMemory, cfg.DirectoryBackend)
	require.Equal(t, StorageSQLite, cfg.StorageBackend)
	require.Equal(t, 250*time.Millisecond, cfg.PersistDebounce)
	require.Equal(t, 5*time.Minute, cfg.QueryStaleTime)
	require.Equal(t, 30*time.Minute, cfg.QueryRetainTime)
	require.Equal(t, 2, cfg.QueryRetries)
	require.Equal(t, 46.603354, cfg.FallbackLatitude)
	require.Equal(t, 1.888334, cfg.FallbackLongitude)
	require.Empty(t, cfg.KafkaBrokers)
	require.True(t, cfg.MetricsEnabled)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"BLOCUS_DIRECTORY_BACKEND": "rest",
		"BLOCUS_DIRECTORY_URL":     "https://example.supabase.co",
		"BLOCUS_KAFKA_BROKERS":     "kafka-1:9092,kafka-2:9092",
		"BLOCUS_QUERY_RETRIES":     "0",
		"BLOCUS_PERSIST_DEBOUNCE":  "1s",
	})
	require.NoError(t, err)

	require.Equal(t, DirectoryREST, cfg.DirectoryBackend)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Zero(t, cfg.QueryRetries)
	require.Equal(t, time.Second, cfg.PersistDebounce)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]map[string]string{
		"rest without url":      {"BLOCUS_DIRECTORY_BACKEND": "rest"},
		"postgres without url":  {"BLOCUS_DIRECTORY_BACKEND": "postgres"},
		"unknown directory":     {"BLOCUS_DIRECTORY_BACKEND": "firestore"},
		"unknown storage":       {"BLOCUS_STORAGE_BACKEND": "redis"},
		"unknown location mode": {"BLOCUS_LOCATION_MODE": "gps"},
		"negative retries":      {"BLOCUS_QUERY_RETRIES": "-1"},
		"stale beyond retain":   {"BLOCUS_QUERY_STALE_TIME": "1h"},
		"malformed duration":    {"BLOCUS_HTTP_TIMEOUT": "soon"},
	}
	for name, environ := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(environ)
			require.Error(t, err)
		})
	}
}
