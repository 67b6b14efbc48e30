// Command server runs the trust layer as a single process: identity
// registry, staking manager, verification oracle, reputation engine and
// credential module behind one HTTP surface.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	credentialhandler "trustgrid/internal/credential/handler"
	credentialservice "trustgrid/internal/credential/service"
	credentialstore "trustgrid/internal/credential/store"
	identityhandler "trustgrid/internal/identity/handler"
	identitymetrics "trustgrid/internal/identity/metrics"
	identityservice "trustgrid/internal/identity/service"
	identitystore "trustgrid/internal/identity/store"
	oraclehandler "trustgrid/internal/oracle/handler"
	oraclemetrics "trustgrid/internal/oracle/metrics"
	oracleservice "trustgrid/internal/oracle/service"
	oraclestore "trustgrid/internal/oracle/store"
	"trustgrid/internal/platform/config"
	"trustgrid/internal/platform/httpserver"
	"trustgrid/internal/platform/logger"
	platformredis "trustgrid/internal/platform/redis"
	reputationhandler "trustgrid/internal/reputation/handler"
	reputationmetrics "trustgrid/internal/reputation/metrics"
	reputationmodels "trustgrid/internal/reputation/models"
	reputationservice "trustgrid/internal/reputation/service"
	reputationstore "trustgrid/internal/reputation/store"
	stakinghandler "trustgrid/internal/staking/handler"
	stakingmetrics "trustgrid/internal/staking/metrics"
	stakingservice "trustgrid/internal/staking/service"
	stakingstore "trustgrid/internal/staking/store"
	httptransport "trustgrid/internal/transport/http"
	id "trustgrid/pkg/domain"
	dErrors "trustgrid/pkg/domain-errors"
	"trustgrid/pkg/platform/audit"
	auditmemory "trustgrid/pkg/platform/audit/store/memory"
	auditpostgres "trustgrid/pkg/platform/audit/store/postgres"
	"trustgrid/pkg/platform/audit/publisher"
	"trustgrid/pkg/platform/audit/relay"
	"trustgrid/pkg/requestcontext"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adminKey := id.Key(cfg.AdminKey)

	// Persistence. Postgres backs the identity registry and the audit
	// outbox when configured; the other modules hold runtime ledger state
	// in memory.
	var (
		identityStore identityservice.IdentityStore
		auditStore    audit.Store
		outboxStore   *auditpostgres.Store
		db            *sql.DB
	)
	if cfg.Postgres.DSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := applySchemas(ctx, db); err != nil {
			return err
		}
		identityStore = identitystore.NewPostgres(db)
		outboxStore = auditpostgres.New(db)
		auditStore = outboxStore
		log.Info("postgres storage enabled")
	} else {
		identityStore = identitystore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
		log.Info("memory storage enabled")
	}

	auditPub := publisher.NewPublisher(auditStore, publisher.WithLogger(log))
	defer auditPub.Close()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	snapshotCache := httptransport.NewSnapshotCache(redisClient, cfg.Redis.SnapshotTTL)

	// Services and the ports between them. Construction order follows the
	// dependency direction; mutually recursive links attach afterwards.
	identitySvc := identityservice.New(identityStore, cfg.Reputation.BaseScore,
		identityservice.WithLogger(log),
		identityservice.WithAuditPublisher(auditPub),
		identityservice.WithMetrics(identitymetrics.New()),
		identityservice.WithSnapshotInvalidator(snapshotCache),
	)

	reputationSvc := reputationservice.New(reputationstore.NewInMemory(),
		reputationmodels.Params{
			BaseScore:    cfg.Reputation.BaseScore,
			MinScore:     cfg.Reputation.MinScore,
			MaxScore:     cfg.Reputation.MaxScore,
			DecayRateBps: cfg.Reputation.DecayRateBps,
		},
		reputationservice.WithLogger(log),
		reputationservice.WithAuditPublisher(auditPub),
		reputationservice.WithMetrics(reputationmetrics.New()),
		reputationservice.WithIdentitySnapshots(identitySvc),
	)
	identitySvc.SetScoreInitializer(scoreInitializer{reputation: reputationSvc})

	recorder := reputationRecorder{identities: identitySvc, reputation: reputationSvc}

	stakingSvc := stakingservice.New(stakingstore.NewInMemory(), adminKey,
		stakingservice.WithLogger(log),
		stakingservice.WithAuditPublisher(auditPub),
		stakingservice.WithMetrics(stakingmetrics.New()),
		stakingservice.WithIdentityNotifier(identitySvc),
		stakingservice.WithReputationRecorder(recorder),
		stakingservice.WithSlasher(adminKey),
	)

	oracleSvc := oracleservice.New(oraclestore.NewInMemory(), stakeBalances{staking: stakingSvc}, adminKey,
		oracleservice.WithLogger(log),
		oracleservice.WithAuditPublisher(auditPub),
		oracleservice.WithMetrics(oraclemetrics.New()),
		oracleservice.WithIdentityRegistry(identityRegistry{identities: identitySvc}),
		oracleservice.WithReputationRecorder(recorder),
	)

	// Seed pool and oracle governance from the environment so a fresh
	// process serves traffic before any admin bootstrap call. A conflict
	// means persisted state already exists and wins.
	seedCtx := requestcontext.WithCallerKey(ctx, adminKey)
	if _, err := stakingSvc.InitializePool(seedCtx, adminKey,
		cfg.Staking.MinStake, cfg.Staking.RewardRateBps, cfg.Staking.UnstakeCooldown); err != nil && !dErrors.HasCode(err, dErrors.CodeConflict) {
		return err
	}
	if _, err := oracleSvc.InitializeConfig(seedCtx,
		cfg.Oracle.MinOracleStake, cfg.Oracle.RequiredConfirmations, cfg.Oracle.RequestTimeout, cfg.Oracle.VerificationFee); err != nil && !dErrors.HasCode(err, dErrors.CodeConflict) {
		return err
	}

	credentialSvc := credentialservice.New(credentialstore.NewInMemory(), identityRegistry{identities: identitySvc}, adminKey,
		credentialservice.WithLogger(log),
		credentialservice.WithAuditPublisher(auditPub),
		credentialservice.WithReputationRecorder(recorder),
	)

	// HTTP surface.
	checks := map[string]httptransport.HealthChecker{}
	if redisClient != nil {
		checks["redis"] = redisClient
	}
	if db != nil {
		checks["postgres"] = dbHealth{db: db}
	}
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:        log,
		JWTSigningKey: cfg.JWTSigningKey,
		Timeout:       30 * time.Second,
		Protected: []httptransport.Registrar{
			identityhandler.New(identitySvc, log),
			stakinghandler.New(stakingSvc, log),
			oraclehandler.New(oracleSvc, log),
			reputationhandler.New(reputationSvc, adminKey, log),
			credentialhandler.New(credentialSvc, log),
		},
		Public: []httptransport.Registrar{
			httptransport.NewSnapshotHandler(identitySvc, reputationSvc, stakingSvc, snapshotCache, log),
		},
		Checks: checks,
	})
	server := httpserver.New(cfg.Server, router)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("http server listening", "addr", server.Addr())
		return server.Run(ctx)
	})

	// Audit relay ships outbox rows to Kafka. Needs both postgres and a
	// broker; without them audit events stay in the local store.
	if outboxStore != nil && len(cfg.Kafka.Brokers) > 0 {
		client, err := kgo.NewClient(kgo.SeedBrokers(cfg.Kafka.Brokers...))
		if err != nil {
			return err
		}
		defer client.Close()
		if err := relay.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic, 3); err != nil {
			return err
		}
		auditRelay := relay.New(outboxStore, client, cfg.Kafka.AuditTopic, log)
		group.Go(func() error {
			err := auditRelay.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		log.Info("audit relay started", "topic", cfg.Kafka.AuditTopic)
	}

	return group.Wait()
}

func applySchemas(ctx context.Context, db *sql.DB) error {
	for _, schema := range []string{identitystore.Schema, auditpostgres.Schema} {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}

type dbHealth struct {
	db *sql.DB
}

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
