package guildguard

import (
	"errors"
	"time"
)

// Config is the engine's configuration tree. Configure once before Build;
// treat as immutable afterwards.
type Config struct {
	Guild     GuildConfig
	Elevation ElevationConfig
	Receipt   ReceiptConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
GUILD CONFIG
====================================
*/

// GuildConfig controls guild creation and role limits.
type GuildConfig struct {
	// SeedDefaultRoles creates Moderator and Officer preset roles alongside
	// the base role when a guild is created.
	SeedDefaultRoles bool
	// MaxRolesPerGuild bounds roles per guild, base role included. Zero or
	// negative means unlimited.
	MaxRolesPerGuild int
}

/*
====================================
ELEVATION CONFIG
====================================
*/

// ElevationConfig controls the elevated-session state machine.
type ElevationConfig struct {
	// TTL is the lifetime of a grant; a refresh extends expiry by this
	// amount. Expiry is always evaluated lazily on access, so the TTL is a
	// security bound, not a scheduling hint.
	TTL time.Duration
	// SweepInterval is how often expired sessions are proactively dropped
	// so state flips are observable without a read. Zero disables the
	// sweeper; it is never needed for correctness.
	SweepInterval time.Duration
	// RedisPrefix namespaces elevation keys when a Redis client is
	// provided.
	RedisPrefix string
}

/*
====================================
RECEIPT CONFIG
====================================
*/

// ReceiptConfig controls signed elevation receipts. When enabled, Elevate
// returns a JWT other services can verify offline; its lifetime matches
// the session's remaining time.
type ReceiptConfig struct {
	Enabled       bool
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is full;
	// drops are counted and observable via Engine.AuditDropped.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Guild: GuildConfig{
			SeedDefaultRoles: false,
			MaxRolesPerGuild: 250,
		},
		Elevation: ElevationConfig{
			TTL:           15 * time.Minute,
			SweepInterval: 0,
			RedisPrefix:   "gel:",
		},
		Receipt: ReceiptConfig{
			Enabled:       false,
			SigningMethod: "ed25519",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Receipt.PrivateKey = cloneBytes(cfg.Receipt.PrivateKey)
	out.Receipt.PublicKey = cloneBytes(cfg.Receipt.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for internally inconsistent or unsafe
// values.
func (c *Config) Validate() error {
	if c.Guild.MaxRolesPerGuild <= 0 {
		return errors.New("Guild MaxRolesPerGuild must be > 0")
	}
	if c.Elevation.TTL <= 0 {
		return errors.New("Elevation TTL must be > 0")
	}
	if c.Elevation.TTL > 24*time.Hour {
		return errors.New("Elevation TTL must be <= 24h")
	}
	if c.Elevation.SweepInterval < 0 {
		return errors.New("Elevation SweepInterval must be >= 0")
	}
	if c.Elevation.RedisPrefix == "" {
		return errors.New("Elevation RedisPrefix must not be empty")
	}

	if c.Receipt.Enabled {
		if c.Receipt.SigningMethod != "ed25519" && c.Receipt.SigningMethod != "hs256" {
			return errors.New("unsupported Receipt signing method")
		}
		if len(c.Receipt.PrivateKey) == 0 {
			return errors.New("Receipt requires PrivateKey")
		}
		if c.Receipt.SigningMethod == "ed25519" && len(c.Receipt.PublicKey) == 0 {
			return errors.New("ed25519 receipts require PublicKey")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
