package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	"example.com/blocus/internal/api"
	"example.com/blocus/internal/cache"
	"example.com/blocus/internal/config"
	"example.com/blocus/internal/consumer"
	"example.com/blocus/internal/directory"
	"example.com/blocus/internal/domain"
	"example.com/blocus/internal/kvstore"
	"example.com/blocus/internal/location"
	"example.com/blocus/internal/selection"
	"example.com/blocus/internal/telemetry"
	httptransport "example.com/blocus/internal/transport/http"
)

type directoryBackend interface {
	domain.Directory
	api.HealthChecker
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink, closeSink := buildTelemetry(cfg)
	defer closeSink()

	kv, closeKV, err := buildStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer closeKV()

	store := selection.New(kv,
		selection.WithDebounce(cfg.PersistDebounce),
		selection.WithTelemetry(sink),
	)
	// Hydration starts before anything can read the selection.
	store.StartHydration(ctx)
	unsubscribe := store.Subscribe(func(selected *domain.Gym) {
		log.Printf("selection now %q", domain.HeaderName(selected))
	})
	defer unsubscribe()

	dir, closeDir, err := buildDirectory(ctx, cfg)
	if err != nil {
		log.Fatalf("directory: %v", err)
	}
	defer closeDir()

	gymCache := cache.New[[]domain.Gym](cache.WithPolicy(buildPolicy(cfg)))
	gyms := gymCache.Observe(cache.GymsKey, dir.ListGyms)
	defer gyms.Close()
	gyms.OnChange(reportQueryErrors(sink))

	fallback := domain.Coordinates{Latitude: cfg.FallbackLatitude, Longitude: cfg.FallbackLongitude}
	tracker := location.Track(ctx, buildLocationProvider(cfg), fallback)
	defer tracker.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		gymCache.RunJanitor(ctx, cfg.JanitorInterval)
	}()

	if len(cfg.KafkaBrokers) > 0 {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.KafkaBrokers,
			GroupID:        cfg.ConsumerGroup,
			Topic:          cfg.GymEventsTopic,
			MinBytes:       1e3,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
		})
		proc := consumer.NewProcessor(reader, consumer.NewInvalidationHandler(gymCache, nil))

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reader.Close()
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("consumer stopped with error (topic=%s): %v", cfg.GymEventsTopic, err)
			}
		}()
		log.Printf("gym event consumer enabled on %s", cfg.GymEventsTopic)
	}

	handler := api.NewHandler(api.Dependencies{
		Gyms:      gyms,
		Directory: dir,
		Selection: store,
		Location:  tracker,
		Health:    dir,
	}, api.WithMetrics(cfg.MetricsEnabled))

	routes := httptransport.CORS(cfg.CORSOrigin)(httptransport.LogRequests(nil)(handler.Router()))
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), routes)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("blocus listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-stop
	log.Println("blocus shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.Printf("selection flush failed: %v", err)
	}
	cancel()
	wg.Wait()
}

func buildPolicy(cfg config.Config) cache.Policy {
	policy := cache.DefaultPolicy()
	policy.StaleTime = cfg.QueryStaleTime
	policy.RetainTime = cfg.QueryRetainTime
	policy.Retry.MaxRetries = cfg.QueryRetries
	policy.Retry.NewBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = cfg.RetryBaseDelay
		b.Multiplier = 2
		b.RandomizationFactor = 0
		b.MaxInterval = 30 * time.Second
		b.MaxElapsedTime = 0
		b.Reset()
		return b
	}
	return policy
}

func buildStorage(ctx context.Context, cfg config.Config) (kvstore.Store, func(), error) {
	if cfg.StorageBackend == config.StorageMemory {
		log.Printf("using in-memory selection storage; selection will not survive restarts")
		return kvstore.NewMemoryStore(), func() {}, nil
	}

	store, err := kvstore.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	if err := store.InitSchema(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	log.Printf("using SQLite selection storage at %s", cfg.SQLitePath)
	return store, func() {
		if err := store.Close(); err != nil {
			log.Printf("close sqlite: %v", err)
		}
	}, nil
}

func buildDirectory(ctx context.Context, cfg config.Config) (directoryBackend, func(), error) {
	switch cfg.DirectoryBackend {
	case config.DirectoryREST:
		log.Printf("using REST directory at %s", cfg.DirectoryURL)
		return directory.NewRESTDirectory(cfg.DirectoryURL, cfg.DirectoryAPIKey, cfg.HTTPTimeout), func() {}, nil
	case config.DirectoryPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("using Postgres directory")
		return directory.NewPostgresDirectory(pool), pool.Close, nil
	default:
		log.Printf("using seeded in-memory directory")
		return directory.NewSeededDirectory(), func() {}, nil
	}
}

func buildLocationProvider(cfg config.Config) location.Provider {
	switch cfg.LocationMode {
	case config.LocationStatic:
		return location.StaticProvider{Position: domain.Coordinates{Latitude: cfg.StaticLatitude, Longitude: cfg.StaticLongitude}}
	case config.LocationGeoIP:
		return location.NewGeoIPProvider(cfg.GeoIPURL, cfg.HTTPTimeout)
	default:
		return location.DeniedProvider{}
	}
}

func buildTelemetry(cfg config.Config) (telemetry.Sink, func()) {
	logSink := telemetry.NewLogSink(log.Default())
	if cfg.TelemetryTopic == "" || len(cfg.KafkaBrokers) == 0 {
		return logSink, func() {}
	}

	kafkaSink := telemetry.NewKafkaSink(telemetry.NewKafkaWriter(cfg.KafkaBrokers, cfg.TelemetryTopic, log.Default()), nil)
	log.Printf("error telemetry publishing to %s", cfg.TelemetryTopic)
	return telemetry.Multi{logSink, kafkaSink}, func() {
		if err := kafkaSink.Close(); err != nil {
			log.Printf("close telemetry writer: %v", err)
		}
	}
}

// reportQueryErrors records every transition of the gym list into error.
func reportQueryErrors(sink telemetry.Sink) func(cache.State[[]domain.Gym]) {
	failing := false
	return func(st cache.State[[]domain.Gym]) {
		if st.IsError() && !failing {
			sink.RecordError(st.Err, map[string]string{"component": "gyms", "op": "list", "key": cache.GymsKey})
		}
		failing = st.IsError()
	}
}
