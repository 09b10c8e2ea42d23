package guildguard

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/guildguard/guildguard/elevation"
	"github.com/guildguard/guildguard/registry"
	"github.com/guildguard/guildguard/token"
)

// Builder assembles an Engine. A zero Builder is not usable; start from
// New.
type Builder struct {
	config Config
	redis  *redis.Client

	verifier  Verifier
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs elevation sessions with Redis instead of process memory,
// so elevation survives restarts and is shared across nodes.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithVerifier sets the secondary-verification collaborator consulted on
// every fresh elevation request. Required.
func (b *Builder) WithVerifier(v Verifier) *Builder {
	b.verifier = v
	return b
}

// WithAuditSink sets the destination for audit events. Without one, events
// are dispatched to a NoOpSink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles counter recording.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the resolve-latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and assembles the Engine. A Builder
// can build at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.verifier == nil {
		return nil, errors.New("verifier required")
	}

	var (
		store    elevation.Store
		memStore *elevation.MemoryStore
	)
	if b.redis != nil {
		store = elevation.NewRedisStore(b.redis, cfg.Elevation.RedisPrefix)
	} else {
		memStore = elevation.NewMemoryStore()
		store = memStore
	}

	engine := &Engine{
		config:     cfg,
		store:      registry.NewStore(cfg.Guild.MaxRolesPerGuild),
		elevations: elevation.NewManager(store, cfg.Elevation.TTL),
		verifier:   b.verifier,
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:    NewMetrics(cfg.Metrics),
		done:       make(chan struct{}),
	}

	if cfg.Receipt.Enabled {
		issuer, err := token.NewIssuer(token.Config{
			SigningMethod: token.SigningMethod(cfg.Receipt.SigningMethod),
			PrivateKey:    cloneBytes(cfg.Receipt.PrivateKey),
			PublicKey:     cloneBytes(cfg.Receipt.PublicKey),
			Issuer:        cfg.Receipt.Issuer,
		})
		if err != nil {
			return nil, err
		}
		engine.receipts = issuer
	}

	// Redis keys expire on their own; only the in-process store needs a
	// sweep to flip state proactively.
	if memStore != nil && cfg.Elevation.SweepInterval > 0 {
		engine.startSweeper(memStore, cfg.Elevation.SweepInterval)
	}

	b.built = true

	return engine, nil
}
