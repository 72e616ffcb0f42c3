package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/blocus/internal/cache"
	"example.com/blocus/internal/config"
	"example.com/blocus/internal/domain"
	"example.com/blocus/internal/kvstore"
	"example.com/blocus/internal/location"
)

type recordingSink struct {
	errs []error
}

func (s *recordingSink) RecordError(err error, _ map[string]string) {
	s.errs = append(s.errs, err)
}

func TestBuildPolicyFromConfig(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"BLOCUS_QUERY_STALE_TIME":  "1m",
		"BLOCUS_QUERY_RETAIN_TIME": "10m",
		"BLOCUS_QUERY_RETRIES":     "4",
		"BLOCUS_RETRY_BASE_DELAY":  "200ms",
	})
	require.NoError(t, err)

	policy := buildPolicy(cfg)
	require.Equal(t, time.Minute, policy.StaleTime)
	require.Equal(t, 10*time.Minute, policy.RetainTime)
	require.Equal(t, 4, policy.Retry.MaxRetries)

	b := policy.Retry.NewBackOff()
	require.Equal(t, 200*time.Millisecond, b.NextBackOff())
	require.Equal(t, 400*time.Millisecond, b.NextBackOff())
}

func TestReportQueryErrorsOncePerFailure(t *testing.T) {
	sink := &recordingSink{}
	report := reportQueryErrors(sink)
	boom := errors.New("offline")

	report(cache.State[[]domain.Gym]{Status: cache.StatusPending, IsFetching: true})
	report(cache.State[[]domain.Gym]{Status: cache.StatusError, Err: boom})
	report(cache.State[[]domain.Gym]{Status: cache.StatusError, Err: boom, IsFetching: true})
	require.Len(t, sink.errs, 1)

	report(cache.State[[]domain.Gym]{Status: cache.StatusPending, IsFetching: true})
	report(cache.State[[]domain.Gym]{Status: cache.StatusError, Err: boom})
	require.Len(t, sink.errs, 2)
}

func TestBuildLocationProvider(t *testing.T) {
	require.IsType(t, location.DeniedProvider{}, buildLocationProvider(config.Config{LocationMode: config.LocationDenied}))
	require.IsType(t, location.StaticProvider{}, buildLocationProvider(config.Config{LocationMode: config.LocationStatic}))
	require.IsType(t, &location.GeoIPProvider{}, buildLocationProvider(config.Config{LocationMode: config.LocationGeoIP}))
}

func TestBuildStorage(t *testing.T) {
	ctx := context.Background()

	kv, closeKV, err := buildStorage(ctx, config.Config{StorageBackend: config.StorageMemory})
	require.NoError(t, err)
	require.IsType(t, &kvstore.MemoryStore{}, kv)
	closeKV()

	kv, closeKV, err = buildStorage(ctx, config.Config{
		StorageBackend: config.StorageSQLite,
		SQLitePath:     filepath.Join(t.TempDir(), "nested", "blocus.db"),
	})
	require.NoError(t, err)
	defer closeKV()
	require.NoError(t, kv.Set(ctx, "gym-storage", []byte(`{"selection":null}`)))
}

func TestBuildDirectoryDefaultsToSeededMemory(t *testing.T) {
	dir, closeDir, err := buildDirectory(context.Background(), config.Config{DirectoryBackend: config.DirectoryMemory})
	require.NoError(t, err)
	defer closeDir()

	gyms, err := dir.ListGyms(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, gyms)
	require.NoError(t, dir.Health(context.Background()))
}
