package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mpcoop/portal/internal/auth"
	"github.com/mpcoop/portal/internal/config"
	"github.com/mpcoop/portal/internal/db"
	"github.com/mpcoop/portal/internal/documents"
	internalhttp "github.com/mpcoop/portal/internal/http"
	"github.com/mpcoop/portal/internal/ledger"
	"github.com/mpcoop/portal/internal/mail"
	"github.com/mpcoop/portal/internal/monitor"
	"github.com/mpcoop/portal/internal/obs"
	"github.com/mpcoop/portal/internal/repo"
	"github.com/mpcoop/portal/internal/service"
	"github.com/mpcoop/portal/internal/storage"
	"github.com/mpcoop/portal/internal/util"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	probes := map[string]func(context.Context) error{"db": pool.Ping}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis parse: %w", err)
		}
		redisClient = redis.NewClient(redisOpts)
		defer redisClient.Close()
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	clock := util.SystemClock{}

	// Redis expira as chaves sozinho; os demais backends precisam de limpeza
	var (
		store  ledger.Store
		purger monitor.Purger
	)
	switch cfg.LedgerBackend {
	case config.LedgerRedis:
		store = ledger.NewRedisStore(redisClient)
	case config.LedgerPostgres:
		pgStore := ledger.NewPostgresStore(pool, clock)
		store, purger = pgStore, pgStore
	case config.LedgerMemory:
		log.Warn().Msg("ledger em memória: sessões se perdem ao reiniciar")
		memStore := ledger.NewMemoryStore()
		store, purger = memStore, memStore
	}
	log.Info().Str("backend", cfg.LedgerBackend).Msg("ledger de refresh tokens")

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAlgorithm, clock)
	if err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	metrics := obs.NewMetrics()
	authService := service.NewAuthService(
		repo.New(pool),
		ledger.New(store, clock, cfg.StoreTimeout),
		jwtManager,
		auth.NewHasher(nil),
		mail.LogNotifier{},
		mail.Links{BaseURL: cfg.FrontendBaseURL},
		metrics,
		service.AuthOptions{
			AccessTTL:               cfg.AccessTTL,
			RefreshTTL:              cfg.RefreshTTL,
			ActivationTTL:           cfg.ActivationTTL,
			UnsubscribeTTL:          cfg.UnsubscribeTTL,
			ResetTTL:                cfg.ResetTTL,
			AcceptRefreshAsIdentity: cfg.AcceptRefreshAsIdentity,
		},
	)

	var files storage.Store = storage.NoopStore{}
	if cfg.S3.Enabled() {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:     cfg.S3.Endpoint,
			Region:       cfg.S3.Region,
			Bucket:       cfg.S3.Bucket,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			PublicDomain: cfg.S3.PublicDomain,
		})
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		files = s3Store
	} else {
		log.Warn().Msg("S3_BUCKET vazio: upload e download de documentos desativados")
	}
	var alerts monitor.Notifier = monitor.LogNotifier{}
	if cfg.Monitoring.SlackWebhookURL != "" {
		alerts = monitor.NewSlackNotifier(cfg.Monitoring.SlackWebhookURL)
	}
	monitorChecks := make(map[string]monitor.Check, len(probes))
	readyChecks := make(map[string]internalhttp.ReadinessCheck, len(probes))
	for name, probe := range probes {
		monitorChecks[name] = probe
		readyChecks[name] = probe
	}
	monitorService := monitor.NewService(
		monitor.Config{Enabled: cfg.Monitoring.Enabled, Interval: cfg.Monitoring.Interval},
		monitorChecks,
		purger,
		clock,
		metrics,
		alerts,
		log.With().Str("component", "monitor").Logger(),
	)
	monitorService.Start(ctx)
	defer monitorService.Stop()

	documentService := documents.NewService(documents.NewRepository(pool), files, clock, cfg.DownloadTTL)

	handler := internalhttp.NewRouter(cfg, internalhttp.Deps{
		Auth:      authService,
		Documents: documentService,
		Metrics:   metrics,
		Checks:    readyChecks,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
