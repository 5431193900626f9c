// Package di assembles the object graph: repositories over the shared
// database handle, the keyed mutex, the domain services, the outbound
// publisher, and the background workers. Construction is eager so a
// misconfiguration fails startup instead of the first request.
package di

import (
	"crypto/ed25519"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/causeway-service/causeway_service/internal/domain/services/auction"
	"github.com/causeway-service/causeway_service/internal/domain/services/bridge"
	"github.com/causeway-service/causeway_service/internal/domain/services/metadata"
	"github.com/causeway-service/causeway_service/internal/domain/services/staking"
	"github.com/causeway-service/causeway_service/internal/infrastructure/cache"
	"github.com/causeway-service/causeway_service/internal/infrastructure/config"
	"github.com/causeway-service/causeway_service/internal/infrastructure/repositories"
	"github.com/causeway-service/causeway_service/internal/workers/consistency_audit"
	"github.com/causeway-service/causeway_service/internal/workers/event_dispatcher"
	"github.com/causeway-service/causeway_service/internal/workers/lock_timeout"
	"github.com/causeway-service/causeway_service/internal/workers/outbox_retention"
	"github.com/causeway-service/causeway_service/pkg/crypto"
	"github.com/causeway-service/causeway_service/pkg/keyedmutex"
	"github.com/causeway-service/causeway_service/pkg/logger"
	"github.com/causeway-service/causeway_service/pkg/queue"
)

// Container holds the wired application components
type Container struct {
	Config *config.Config
	DB     *sql.DB
	SqlxDB *sqlx.DB
	Logger *logger.Logger
	ZapLog *zap.Logger

	// Infrastructure
	RedisClient cache.RedisClient
	Publisher   queue.Publisher
	LockMutex   *keyedmutex.KeyedMutex

	// Repositories
	LockRepo          *repositories.LockRepository
	RelayEventRepo    *repositories.RelayEventRepository
	ConsumedProofRepo *repositories.ConsumedProofRepository
	OutboundEventRepo *repositories.OutboundEventRepository

	// Domain services
	StakingService  *staking.Service
	AuctionService  *auction.Service
	MetadataService *metadata.Service
	BridgeService   *bridge.Service

	// Workers
	LockTimeoutWorker *lock_timeout.Worker
	EventDispatcher   *event_dispatcher.Worker
	ConsistencyAudit  *consistency_audit.Worker
	OutboxRetention   *outbox_retention.Worker
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, db *sql.DB, log *logger.Logger) (*Container, error) {
	zapLog := log.Zap()

	// Wrap sql.DB with sqlx for the repositories
	sqlxDB := sqlx.NewDb(db, "postgres")

	// Initialize repositories
	lockRepo := repositories.NewLockRepository(sqlxDB, zapLog)
	relayEventRepo := repositories.NewRelayEventRepository(sqlxDB, zapLog)
	consumedProofRepo := repositories.NewConsumedProofRepository(sqlxDB, zapLog)
	outboundEventRepo := repositories.NewOutboundEventRepository(sqlxDB, zapLog)

	// Initialize Redis client
	redisClient, err := cache.NewRedisClient(&cfg.Redis, zapLog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis client: %w", err)
	}

	publisher := queue.NewStreamPublisher(redisClient.Client(), cfg.Relay.StreamMaxLen, log)

	signerKey, err := parseSignerKey(cfg.Relay.SignerPublicKey)
	if err != nil {
		return nil, err
	}
	if signerKey == nil {
		zapLog.Warn("Relay signer key not configured; unlock proofs will not verify")
	}

	lockMutex := keyedmutex.New(cfg.Bridge.MutexStripes)

	bridgeService := bridge.NewService(
		sqlxDB,
		lockRepo,
		relayEventRepo,
		consumedProofRepo,
		outboundEventRepo,
		lockMutex,
		signerKey,
		cfg.Bridge.LockTimeout(),
		cfg.Bridge.MintTimeout(),
		log,
	)

	container := &Container{
		Config: cfg,
		DB:     db,
		SqlxDB: sqlxDB,
		Logger: log,
		ZapLog: zapLog,

		RedisClient: redisClient,
		Publisher:   publisher,
		LockMutex:   lockMutex,

		LockRepo:          lockRepo,
		RelayEventRepo:    relayEventRepo,
		ConsumedProofRepo: consumedProofRepo,
		OutboundEventRepo: outboundEventRepo,

		StakingService:  staking.NewService(log),
		AuctionService:  auction.NewService(log),
		MetadataService: metadata.NewService(cfg.Validation.MetadataMarker, log),
		BridgeService:   bridgeService,
	}

	container.initializeWorkers()

	return container, nil
}

// initializeWorkers builds the background workers against the wired
// services. Start/stop stays with the caller.
func (c *Container) initializeWorkers() {
	cfg := c.Config

	c.LockTimeoutWorker = lock_timeout.NewWorker(c.BridgeService, &lock_timeout.Config{
		CheckInterval: time.Duration(cfg.Bridge.SweepIntervalSeconds) * time.Second,
		BatchSize:     cfg.Bridge.SweepBatchSize,
	}, c.Logger)

	c.EventDispatcher = event_dispatcher.NewWorker(c.OutboundEventRepo, c.Publisher, &event_dispatcher.Config{
		Stream:       cfg.Relay.OutboundStream,
		PollInterval: time.Duration(cfg.Workers.OutboxPollSeconds) * time.Second,
		BatchSize:    cfg.Workers.OutboxBatchSize,
		MaxAttempts:  cfg.Workers.OutboxMaxAttempts,
	}, c.Logger)

	c.ConsistencyAudit = consistency_audit.NewWorker(
		c.LockRepo, c.RelayEventRepo, cfg.Workers.AuditSchedule, c.ZapLog)

	c.OutboxRetention = outbox_retention.NewWorker(
		c.OutboundEventRepo, cfg.Workers.OutboxRetentionDays, cfg.Workers.RetentionSchedule, c.ZapLog)
}

// parseSignerKey decodes the hex-encoded relay signer public key. An
// empty key is allowed (config validation restricts that to
// development); a malformed one is a startup error.
func parseSignerKey(hexKey string) (ed25519.PublicKey, error) {
	if hexKey == "" {
		return nil, nil
	}
	raw, err := crypto.DecodeHex(hexKey)
	if err != nil {
		return nil, fmt.Errorf("relay signer public key is not valid hex: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("relay signer public key must be %d bytes, got %d",
			ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// GetStakingService returns the staking validator
func (c *Container) GetStakingService() *staking.Service {
	return c.StakingService
}

// GetAuctionService returns the auction validator
func (c *Container) GetAuctionService() *auction.Service {
	return c.AuctionService
}

// GetMetadataService returns the metadata validator
func (c *Container) GetMetadataService() *metadata.Service {
	return c.MetadataService
}

// GetBridgeService returns the bridge lifecycle service
func (c *Container) GetBridgeService() *bridge.Service {
	return c.BridgeService
}

// Close releases the container's long-lived connections. The database
// handle is owned by the caller.
func (c *Container) Close() error {
	if c.RedisClient != nil {
		return c.RedisClient.Close()
	}
	return nil
}
