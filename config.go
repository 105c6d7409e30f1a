package helmsman

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends selectable in StoreConfig.Backend.
const (
	BackendMemory = "memory"
	BackendNATSKV = "natskv"
	BackendBoltDB = "boltdb"
	BackendSQL    = "sql"
)

// StoreConfig selects and configures the coordination store backend.
//
// The controller itself only needs a store.Store; this section is read by
// the command line tool and by applications that build the store from
// configuration.
type StoreConfig struct {
	// Backend is one of "memory", "natskv", "boltdb" or "sql".
	Backend string `yaml:"backend"`

	// NATSURL is the NATS server URL for the natskv backend.
	NATSURL string `yaml:"natsUrl"`

	// PersistentBucket is the JetStream KV bucket holding persistent properties.
	PersistentBucket string `yaml:"persistentBucket"`

	// EphemeralBucket is the JetStream KV bucket holding session-bound properties.
	EphemeralBucket string `yaml:"ephemeralBucket"`

	// EphemeralTTL is how long an ephemeral property survives without a
	// keepalive. A participant that stops refreshing its live instance is
	// considered gone after this long.
	EphemeralTTL time.Duration `yaml:"ephemeralTtl"`

	// Replicas is the JetStream replica count of both buckets.
	Replicas int `yaml:"replicas"`

	// BoltPath is the database file of the boltdb backend.
	BoltPath string `yaml:"boltPath"`

	// SQLDriver is "postgres" or "sqlite3" for the sql backend.
	SQLDriver string `yaml:"sqlDriver"`

	// SQLDSN is the data source name of the sql backend.
	SQLDSN string `yaml:"sqlDsn"`

	// SQLTable is the table holding properties in the sql backend.
	SQLTable string `yaml:"sqlTable"`
}

// Config is the configuration for the Controller.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// ClusterName is the cluster the controller reconciles. Required.
	ClusterName string `yaml:"clusterName"`

	// ControllerName identifies this controller in logs and session records.
	ControllerName string `yaml:"controllerName"`

	// OperationTimeout bounds each store call. A read that times out is
	// treated as absent for the rest of the pass.
	// Recommended: 5 seconds.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// PassTimeout bounds one reconciliation pass.
	// Must be >= OperationTimeout.
	PassTimeout time.Duration `yaml:"passTimeout"`

	// PollInterval is how often a pass runs without any change notification.
	// Fallback detection if the store watch misses events or the backend
	// cannot watch.
	PollInterval time.Duration `yaml:"pollInterval"`

	// WatchDebounce batches bursts of change notifications into one pass.
	// Must be < PollInterval.
	WatchDebounce time.Duration `yaml:"watchDebounce"`

	// MaxParallelResources bounds concurrent resource computations in a pass.
	MaxParallelResources int `yaml:"maxParallelResources"`

	// ShutdownTimeout is the maximum time Stop waits for an in-flight pass.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// Store selects the coordination store backend.
	Store StoreConfig `yaml:"store"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values; ClusterName is left empty
func DefaultConfig() Config {
	return Config{
		ControllerName:       "controller",
		OperationTimeout:     5 * time.Second,
		PassTimeout:          30 * time.Second,
		PollInterval:         30 * time.Second,
		WatchDebounce:        100 * time.Millisecond,
		MaxParallelResources: 8,
		ShutdownTimeout:      10 * time.Second,
		Store: StoreConfig{
			Backend:          BackendMemory,
			NATSURL:          "nats://127.0.0.1:4222",
			PersistentBucket: "helmsman",
			EphemeralBucket:  "helmsman-ephemeral",
			EphemeralTTL:     30 * time.Second,
			Replicas:         1,
			BoltPath:         "helmsman.db",
			SQLDriver:        "sqlite3",
			SQLTable:         "helmsman_properties",
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.ControllerName == "" {
		cfg.ControllerName = defaults.ControllerName
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.PassTimeout == 0 {
		cfg.PassTimeout = defaults.PassTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.WatchDebounce == 0 {
		cfg.WatchDebounce = defaults.WatchDebounce
	}
	if cfg.MaxParallelResources == 0 {
		cfg.MaxParallelResources = defaults.MaxParallelResources
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = defaults.Store.Backend
	}
	if cfg.Store.NATSURL == "" {
		cfg.Store.NATSURL = defaults.Store.NATSURL
	}
	if cfg.Store.PersistentBucket == "" {
		cfg.Store.PersistentBucket = defaults.Store.PersistentBucket
	}
	if cfg.Store.EphemeralBucket == "" {
		cfg.Store.EphemeralBucket = defaults.Store.EphemeralBucket
	}
	if cfg.Store.EphemeralTTL == 0 {
		cfg.Store.EphemeralTTL = defaults.Store.EphemeralTTL
	}
	if cfg.Store.Replicas == 0 {
		cfg.Store.Replicas = defaults.Store.Replicas
	}
	if cfg.Store.BoltPath == "" {
		cfg.Store.BoltPath = defaults.Store.BoltPath
	}
	if cfg.Store.SQLDriver == "" {
		cfg.Store.SQLDriver = defaults.Store.SQLDriver
	}
	if cfg.Store.SQLTable == "" {
		cfg.Store.SQLTable = defaults.Store.SQLTable
	}
	// Note: SQLDSN has no default; the sql backend requires it
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - ClusterName is set
//   - OperationTimeout > 0
//   - PassTimeout >= OperationTimeout (a pass makes at least one store call)
//   - WatchDebounce < PollInterval
//   - MaxParallelResources >= 1
//   - Store.Backend is known and its required fields are set
//
// Returns:
//   - error: Validation error with clear explanation, nil if valid
func (cfg *Config) Validate() error {
	// Rule 1: cluster identity
	if cfg.ClusterName == "" {
		return fmt.Errorf("ClusterName is required")
	}

	// Rule 2: store call bound
	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("OperationTimeout must be > 0, got %v", cfg.OperationTimeout)
	}

	// Rule 3: pass bound vs store call bound
	if cfg.PassTimeout < cfg.OperationTimeout {
		return fmt.Errorf(
			"PassTimeout (%v) must be >= OperationTimeout (%v)",
			cfg.PassTimeout, cfg.OperationTimeout,
		)
	}

	// Rule 4: debounce vs polling
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("PollInterval must be > 0, got %v", cfg.PollInterval)
	}
	if cfg.WatchDebounce < 0 || cfg.WatchDebounce >= cfg.PollInterval {
		return fmt.Errorf(
			"WatchDebounce (%v) must be >= 0 and < PollInterval (%v)",
			cfg.WatchDebounce, cfg.PollInterval,
		)
	}

	// Rule 5: worker pool
	if cfg.MaxParallelResources < 1 {
		return fmt.Errorf("MaxParallelResources must be >= 1, got %d", cfg.MaxParallelResources)
	}

	// Rule 6: store backend
	return cfg.Store.validate()
}

func (s *StoreConfig) validate() error {
	switch s.Backend {
	case BackendMemory:
		return nil
	case BackendNATSKV:
		if s.NATSURL == "" || s.PersistentBucket == "" || s.EphemeralBucket == "" {
			return fmt.Errorf("natskv backend requires NATSURL, PersistentBucket and EphemeralBucket")
		}
		if s.PersistentBucket == s.EphemeralBucket {
			return fmt.Errorf("PersistentBucket and EphemeralBucket must differ, both are %q", s.PersistentBucket)
		}
		if s.EphemeralTTL <= 0 {
			return fmt.Errorf("EphemeralTTL must be > 0, got %v", s.EphemeralTTL)
		}
	case BackendBoltDB:
		if s.BoltPath == "" {
			return fmt.Errorf("boltdb backend requires BoltPath")
		}
	case BackendSQL:
		if s.SQLDriver != "postgres" && s.SQLDriver != "sqlite3" {
			return fmt.Errorf("SQLDriver must be \"postgres\" or \"sqlite3\", got %q", s.SQLDriver)
		}
		if s.SQLDSN == "" {
			return fmt.Errorf("sql backend requires SQLDSN")
		}
	default:
		return fmt.Errorf("unknown store backend %q", s.Backend)
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for non-recommended values.
//
// This is called after Validate() in NewController() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	// Warn if a pass cannot absorb a couple of slow store calls
	if cfg.PassTimeout < 2*cfg.OperationTimeout {
		logger.Warn(
			"PassTimeout is below recommended minimum",
			"passTimeout", cfg.PassTimeout,
			"operationTimeout", cfg.OperationTimeout,
			"recommended", 2*cfg.OperationTimeout,
		)
	}

	// Warn if polling is slower than liveness expiry
	if cfg.Store.Backend == BackendNATSKV && cfg.PollInterval > cfg.Store.EphemeralTTL {
		logger.Warn(
			"PollInterval exceeds EphemeralTTL, expired participants may be noticed late",
			"pollInterval", cfg.PollInterval,
			"ephemeralTTL", cfg.Store.EphemeralTTL,
		)
	}

	// Warn if the memory backend is used outside tests
	if cfg.Store.Backend == BackendMemory {
		logger.Warn("memory store backend keeps no state across restarts")
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Returns:
//   - Config: Configuration with fast timings and the memory backend
//
// Example:
//
//	cfg := helmsman.TestConfig()
//	cfg.ClusterName = "test-cluster"
//	ctrl, err := helmsman.NewController(&cfg, memory.New())
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.ClusterName = "test-cluster"
	cfg.OperationTimeout = 1 * time.Second
	cfg.PassTimeout = 5 * time.Second
	cfg.PollInterval = 200 * time.Millisecond
	cfg.WatchDebounce = 10 * time.Millisecond
	cfg.ShutdownTimeout = 2 * time.Second
	cfg.Store.EphemeralTTL = 2 * time.Second

	return cfg
}

// LoadConfig reads a YAML configuration file, applies defaults and validates it.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - *Config: Loaded configuration
//   - error: Read, parse or validation failure (validation errors wrap ErrInvalidConfig)
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// ReadConfig reads a YAML configuration file and applies defaults without
// validating, so callers can override fields before calling Validate.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	SetDefaults(&cfg)

	return &cfg, nil
}
