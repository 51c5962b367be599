package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/chasef07/marketplace-sub002/internal/blob/s3"
	"github.com/chasef07/marketplace-sub002/internal/cache/redis"
	"github.com/chasef07/marketplace-sub002/internal/config"
	"github.com/chasef07/marketplace-sub002/internal/domain"
	"github.com/chasef07/marketplace-sub002/internal/notify"
	"github.com/chasef07/marketplace-sub002/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Stores
	ListingStore     domain.ListingStore
	PolicyStore      domain.PolicyStore
	NegotiationStore domain.NegotiationStore
	OfferStore       domain.OfferStore
	DecisionStore    domain.DecisionStore
	TaskStore        domain.TaskStore

	// Caches
	LockManager   domain.LockManager
	RateLimiter   domain.RateLimiter
	DeadlineStore domain.DeadlineStore
	DecisionBus   domain.DecisionBus

	// Blob storage (nil unless archiving is configured)
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsS3 returns true when object storage should be wired. Archiving is the
// only S3 consumer, so an explicit bucket is the signal.
func needsS3(cfg *config.Config) bool {
	return cfg.Archive.Enabled && cfg.S3.Bucket != ""
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Supabase.DSN,
		Host:     cfg.Supabase.Host,
		Port:     cfg.Supabase.Port,
		Database: cfg.Supabase.Database,
		User:     cfg.Supabase.User,
		Password: cfg.Supabase.Password,
		SSLMode:  cfg.Supabase.SSLMode,
		MaxConns: cfg.Supabase.PoolMaxConns,
		MinConns: cfg.Supabase.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	// Run migrations if enabled.
	if cfg.Supabase.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	decisionStore := postgres.NewDecisionStore(pool)
	deps.ListingStore = postgres.NewListingStore(pool)
	deps.PolicyStore = postgres.NewPolicyStore(pool)
	deps.NegotiationStore = postgres.NewNegotiationStore(pool)
	deps.OfferStore = postgres.NewOfferStore(pool)
	deps.DecisionStore = decisionStore
	deps.TaskStore = postgres.NewTaskStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.LockManager = redis.NewLockManager(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.DeadlineStore = redis.NewDeadlineStore(redisClient)
	deps.DecisionBus = redis.NewDecisionBus(redisClient)

	// --- S3 blob storage (only when archiving is configured) ---
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, decisionStore)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
