package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Dimo99/NFT-Lotary/internal/bank"
	s3blob "github.com/Dimo99/NFT-Lotary/internal/blob/s3"
	"github.com/Dimo99/NFT-Lotary/internal/cache/redis"
	"github.com/Dimo99/NFT-Lotary/internal/chain"
	"github.com/Dimo99/NFT-Lotary/internal/config"
	"github.com/Dimo99/NFT-Lotary/internal/crypto"
	"github.com/Dimo99/NFT-Lotary/internal/domain"
	"github.com/Dimo99/NFT-Lotary/internal/notify"
	"github.com/Dimo99/NFT-Lotary/internal/service"
	"github.com/Dimo99/NFT-Lotary/internal/store/bolt"
	"github.com/Dimo99/NFT-Lotary/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Operator is the factory authority resolved from configuration.
	Operator common.Address

	// Clock is the block counter the engine reads. Manual is the same
	// clock when the manual source is configured, nil otherwise; only the
	// manual clock can be advanced in-process.
	Clock  domain.BlockClock
	Manual *chain.ManualClock

	Funds *bank.Ledger

	// Stores (nil outside serve mode)
	RoundStore  domain.RoundStore
	TicketStore domain.TicketStore
	AwardStore  domain.AwardStore
	AuditStore  domain.AuditStore
	Registry    domain.RegistryStore

	// Caches (nil outside serve mode)
	SignalBus   domain.SignalBus
	Snapshots   domain.SnapshotCache
	RateLimiter domain.RateLimiter

	// Blob storage (nil unless s3.enabled)
	BlobWriter domain.BlobWriter
	Archiver   domain.RoundArchiver

	Notifier *notify.Notifier

	// Service is the lottery engine facade built on everything above.
	Service *service.LotteryService
}

// needsInfra reports whether the mode requires the external backing services
// (Postgres, Redis, the on-disk registry). Demo mode runs entirely in memory.
func needsInfra(mode string) bool {
	return strings.ToLower(mode) == "serve"
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

	deps := &Dependencies{
		Funds: bank.NewLedger(),
	}

	// --- Operator identity ---
	operator, err := crypto.ResolveOperator(crypto.OperatorConfig{
		Address:          cfg.Operator.Address,
		EncryptedKeyPath: cfg.Operator.EncryptedKeyPath,
		KeyPassword:      cfg.Operator.KeyPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: operator: %w", err)
	}
	deps.Operator = operator

	// --- Block clock ---
	switch strings.ToLower(cfg.Chain.Source) {
	case "ethereum":
		eth, err := chain.DialEthereum(ctx, cfg.Chain.RPCURL)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: ethereum clock: %w", err)
		}
		closers = append(closers, eth.Close)
		deps.Clock = eth
	default:
		manual := chain.NewManualClock(cfg.Chain.StartBlock)
		deps.Manual = manual
		deps.Clock = manual
	}

	// --- PostgreSQL, Redis, registry (only for modes that persist) ---
	if needsInfra(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.RoundStore = postgres.NewRoundStore(pool)
		deps.TicketStore = postgres.NewTicketStore(pool)
		deps.AwardStore = postgres.NewAwardStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)

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

		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Snapshots = redis.NewSnapshotCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)

		registry, err := bolt.Open(cfg.Registry.Path)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: registry: %w", err)
		}
		closers = append(closers, func() { _ = registry.Close() })
		deps.Registry = registry
	}

	// --- S3 blob storage (round journal archival) ---
	if cfg.S3.Enabled {
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
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.AuditStore)
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

	// --- Lottery engine ---
	svc, err := service.NewLotteryService(ctx, operator, service.Deps{
		Clock:     deps.Clock,
		Funds:     deps.Funds,
		Rounds:    deps.RoundStore,
		Tickets:   deps.TicketStore,
		Awards:    deps.AwardStore,
		Audit:     deps.AuditStore,
		Registry:  deps.Registry,
		Bus:       deps.SignalBus,
		Snapshots: deps.Snapshots,
		Archiver:  deps.Archiver,
		Notifier:  deps.Notifier,
		Logger:    logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: lottery service: %w", err)
	}
	deps.Service = svc

	return deps, cleanup, nil
}
