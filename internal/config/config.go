package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"commandr-server/internal/audit"
	"commandr-server/internal/store"
)

type Config struct {
	Port          int
	SessionSecret string
	GinMode       string
	TLSCertFile   string
	TLSKeyFile    string
	TokenExpiry   time.Duration

	SessionPolicy     store.SessionPolicy
	InactivityTimeout time.Duration
	PruneInterval     time.Duration
	AuditSink         string
	AuditTarget       string
	SeedSampleSchema  bool

	MaxUploadBytes int64
	LogLevel       logrus.Level
	LogFormat      string
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:              3000,
		GinMode:           "release",
		TokenExpiry:       7 * 24 * time.Hour,
		SessionPolicy:     store.PolicyAutoProvision,
		InactivityTimeout: store.DefaultInactivityTimeout,
		PruneInterval:     store.DefaultPruneInterval,
		AuditSink:         audit.KindFile,
		AuditTarget:       "accounts-audit.log",
		MaxUploadBytes:    32 << 20,
		LogLevel:          logrus.InfoLevel,
		LogFormat:         "text",
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, errors.New("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.SessionSecret = env.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		return Config{}, errors.New("SESSION_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	var err error
	if cfg.TokenExpiry, err = seconds(env, "TOKEN_EXPIRY_SECONDS", cfg.TokenExpiry); err != nil {
		return Config{}, err
	}
	if cfg.InactivityTimeout, err = seconds(env, "INACTIVITY_TIMEOUT_SECONDS", cfg.InactivityTimeout); err != nil {
		return Config{}, err
	}
	if cfg.PruneInterval, err = seconds(env, "PRUNE_INTERVAL_SECONDS", cfg.PruneInterval); err != nil {
		return Config{}, err
	}

	if raw := env.Getenv("SESSION_POLICY"); raw != "" {
		policy, err := store.ParseSessionPolicy(raw)
		if err != nil {
			return Config{}, errors.Wrap(err, "invalid SESSION_POLICY")
		}
		cfg.SessionPolicy = policy
	}

	if raw := env.Getenv("AUDIT_SINK"); raw != "" {
		switch raw {
		case audit.KindFile, audit.KindBolt, audit.KindNone:
			cfg.AuditSink = raw
		default:
			return Config{}, errors.Errorf("invalid AUDIT_SINK %q", raw)
		}
	}
	if raw := env.Getenv("AUDIT_TARGET"); raw != "" {
		cfg.AuditTarget = raw
	}

	if raw := env.Getenv("SEED_SAMPLE_SCHEMA"); raw != "" {
		seed, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, errors.New("invalid SEED_SAMPLE_SCHEMA")
		}
		cfg.SeedSampleSchema = seed
	}

	if raw := env.Getenv("MAX_UPLOAD_BYTES"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, errors.New("invalid MAX_UPLOAD_BYTES")
		}
		cfg.MaxUploadBytes = n
	}

	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		level, err := logrus.ParseLevel(raw)
		if err != nil {
			return Config{}, errors.Wrap(err, "invalid LOG_LEVEL")
		}
		cfg.LogLevel = level
	}
	if raw := strings.ToLower(env.Getenv("LOG_FORMAT")); raw != "" {
		if raw != "text" && raw != "json" {
			return Config{}, errors.Errorf("invalid LOG_FORMAT %q", raw)
		}
		cfg.LogFormat = raw
	}

	return cfg, nil
}

func seconds(env Env, key string, def time.Duration) (time.Duration, error) {
	raw := env.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.Errorf("invalid %s", key)
	}
	return time.Duration(n) * time.Second, nil
}

// NewLogger builds the process logger from the log settings.
func (c Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
