package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates process configuration. Built once in main from the
// environment so the rest of the tree stays free of os.Getenv calls.
type Config struct {
	Server     Server
	Postgres   Postgres
	Redis      Redis
	Kafka      Kafka
	Staking    Staking
	Oracle     Oracle
	Reputation Reputation
	// AdminKey is the key allowed to run pool/oracle/issuer administration.
	AdminKey string
	// JWTSigningKey verifies bearer tokens carrying the caller key claim.
	JWTSigningKey string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

// Postgres holds the connection string; empty means memory stores only.
type Postgres struct {
	DSN string
}

// Redis holds cache configuration; empty URL disables the snapshot cache.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// SnapshotTTL bounds staleness of cached read-surface snapshots.
	SnapshotTTL time.Duration
}

// Kafka holds broker addresses for the audit relay; empty disables it.
type Kafka struct {
	Brokers    []string
	AuditTopic string
}

// Staking seeds the pool when it is first initialized.
type Staking struct {
	MinStake        uint64
	RewardRateBps   uint64
	UnstakeCooldown time.Duration
}

// Oracle seeds the oracle configuration record.
type Oracle struct {
	MinOracleStake        uint64
	RequiredConfirmations uint32
	RequestTimeout        time.Duration
	VerificationFee       uint64
}

// Reputation seeds the scoring engine.
type Reputation struct {
	BaseScore    int64
	MinScore     int64
	MaxScore     int64
	DecayRateBps int64
}

// FromEnv builds Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:              envString("TRUSTGRID_ADDR", ":8080"),
			ReadHeaderTimeout: envDuration("TRUSTGRID_READ_HEADER_TIMEOUT", 5*time.Second),
			WriteTimeout:      envDuration("TRUSTGRID_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       envDuration("TRUSTGRID_IDLE_TIMEOUT", 2*time.Minute),
			ShutdownTimeout:   envDuration("TRUSTGRID_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: Postgres{
			DSN: os.Getenv("TRUSTGRID_POSTGRES_DSN"),
		},
		Redis: Redis{
			URL:          os.Getenv("TRUSTGRID_REDIS_URL"),
			PoolSize:     envInt("TRUSTGRID_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("TRUSTGRID_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("TRUSTGRID_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("TRUSTGRID_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("TRUSTGRID_REDIS_WRITE_TIMEOUT", 3*time.Second),
			SnapshotTTL:  envDuration("TRUSTGRID_SNAPSHOT_TTL", 30*time.Second),
		},
		Kafka: Kafka{
			Brokers:    envList("TRUSTGRID_KAFKA_BROKERS"),
			AuditTopic: envString("TRUSTGRID_AUDIT_TOPIC", "trustgrid.audit"),
		},
		Staking: Staking{
			MinStake:        envUint("TRUSTGRID_MIN_STAKE", 1_000_000_000),
			RewardRateBps:   envUint("TRUSTGRID_REWARD_RATE_BPS", 500),
			UnstakeCooldown: envDuration("TRUSTGRID_UNSTAKE_COOLDOWN", 7*24*time.Hour),
		},
		Oracle: Oracle{
			MinOracleStake:        envUint("TRUSTGRID_MIN_ORACLE_STAKE", 1_000_000_000),
			RequiredConfirmations: uint32(envInt("TRUSTGRID_REQUIRED_CONFIRMATIONS", 2)),
			RequestTimeout:        envDuration("TRUSTGRID_REQUEST_TIMEOUT", 24*time.Hour),
			VerificationFee:       envUint("TRUSTGRID_VERIFICATION_FEE", 10_000_000),
		},
		Reputation: Reputation{
			BaseScore:    int64(envInt("TRUSTGRID_BASE_SCORE", 500)),
			MinScore:     int64(envInt("TRUSTGRID_MIN_SCORE", 0)),
			MaxScore:     int64(envInt("TRUSTGRID_MAX_SCORE", 1000)),
			DecayRateBps: int64(envInt("TRUSTGRID_DECAY_RATE_BPS", 10)),
		},
		AdminKey: envString("TRUSTGRID_ADMIN_KEY", "admin-dev-key"),
		// Development default; must be overridden in production.
		JWTSigningKey: envString("TRUSTGRID_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		LogLevel:      envString("TRUSTGRID_LOG_LEVEL", "info"),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envUint(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
