package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/execution-hub/choreographer/internal/application/selector"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendRaft     = "raft"
)

// Config holds service configuration.
type Config struct {
	ServerAddr string `yaml:"serverAddr"`
	LogLevel   string `yaml:"logLevel"`
	// APIKeyHash is a bcrypt hash; empty disables API key checks.
	APIKeyHash string `yaml:"apiKeyHash"`

	DirectoryBackend string `yaml:"directoryBackend"`
	DatabaseURL      string `yaml:"databaseUrl"`
	DBMaxConns       int32  `yaml:"dbMaxConns"`
	MigrationsDir    string `yaml:"migrationsDir"`

	ProbeTimeout     time.Duration `yaml:"probeTimeout"`
	ProbeConcurrency int           `yaml:"probeConcurrency"`
	ProbeTLS         bool          `yaml:"probeTls"`

	Strategy    selector.StrategyConfig `yaml:"strategy"`
	VerifyPhase string                  `yaml:"verifyPhase"`

	ClaimBackend string        `yaml:"claimBackend"`
	RedisURL     string        `yaml:"redisUrl"`
	ClaimTTL     time.Duration `yaml:"claimTtl"`
	Raft         RaftConfig    `yaml:"raft"`
}

type RaftConfig struct {
	NodeID    string `yaml:"nodeId"`
	Addr      string `yaml:"addr"`
	DataDir   string `yaml:"dataDir"`
	Bootstrap bool   `yaml:"bootstrap"`

	// Peers maps node id to raft address for the other voters.
	Peers map[string]string `yaml:"peers"`

	// RPCAddr serves claim commands forwarded by followers.
	RPCAddr string `yaml:"rpcAddr"`
	// RPCPeers maps node id to the base URL of that node's RPCAddr.
	RPCPeers map[string]string `yaml:"rpcPeers"`
	RPCToken string            `yaml:"rpcToken"`
}

func defaults() *Config {
	return &Config{
		ServerAddr:       "0.0.0.0:8080",
		LogLevel:         "info",
		DirectoryBackend: BackendMemory,
		DBMaxConns:       10,
		MigrationsDir:    "internal/migrations",
		ProbeTimeout:     5 * time.Second,
		ProbeConcurrency: 8,
		Strategy:         selector.StrategyConfig{Name: selector.StrategyRandom},
		VerifyPhase:      "NONE",
		ClaimBackend:     BackendMemory,
		ClaimTTL:         30 * time.Second,
		Raft: RaftConfig{
			NodeID:    "node-1",
			Addr:      "127.0.0.1:7000",
			DataDir:   "data/raft",
			Bootstrap: true,
			RPCAddr:   "127.0.0.1:7001",
		},
	}
}

// Load reads configuration from an optional YAML file named by CONFIG_FILE,
// then applies environment overrides.
func Load() (*Config, error) {
	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ServerAddr = getenv("SERVER_ADDR", cfg.ServerAddr)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.APIKeyHash = getenv("API_KEY_HASH", cfg.APIKeyHash)

	cfg.DirectoryBackend = getenv("DIRECTORY_BACKEND", cfg.DirectoryBackend)
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	if cfg.DatabaseURL == "" {
		user := getenv("POSTGRES_USER", "choreographer")
		pass := getenv("POSTGRES_PASSWORD", "choreographer_pass")
		db := getenv("POSTGRES_DB", "choreographer")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}
	cfg.DBMaxConns = int32(parseInt(os.Getenv("DB_MAX_CONNS"), int(cfg.DBMaxConns)))
	cfg.MigrationsDir = getenv("MIGRATIONS_DIR", cfg.MigrationsDir)

	cfg.ProbeTimeout = parseDuration(os.Getenv("PROBE_TIMEOUT"), cfg.ProbeTimeout)
	cfg.ProbeConcurrency = parseInt(os.Getenv("PROBE_CONCURRENCY"), cfg.ProbeConcurrency)
	cfg.ProbeTLS = parseBool(os.Getenv("PROBE_TLS"), cfg.ProbeTLS)

	cfg.Strategy.Name = getenv("STRATEGY", cfg.Strategy.Name)
	cfg.Strategy.MaxLoad = parseFloat(os.Getenv("STRATEGY_MAX_LOAD"), cfg.Strategy.MaxLoad)
	cfg.Strategy.ScoreExpression = getenv("STRATEGY_SCORE_EXPR", cfg.Strategy.ScoreExpression)
	cfg.Strategy.FilterExpression = getenv("STRATEGY_FILTER_EXPR", cfg.Strategy.FilterExpression)
	cfg.VerifyPhase = getenv("VERIFY_PHASE", cfg.VerifyPhase)

	cfg.ClaimBackend = getenv("CLAIM_BACKEND", cfg.ClaimBackend)
	cfg.RedisURL = getenv("REDIS_URL", cfg.RedisURL)
	cfg.ClaimTTL = parseDuration(os.Getenv("CLAIM_TTL"), cfg.ClaimTTL)
	cfg.Raft.NodeID = getenv("RAFT_NODE_ID", cfg.Raft.NodeID)
	cfg.Raft.Addr = getenv("RAFT_ADDR", cfg.Raft.Addr)
	cfg.Raft.DataDir = getenv("RAFT_DATA_DIR", cfg.Raft.DataDir)
	cfg.Raft.Bootstrap = parseBool(os.Getenv("RAFT_BOOTSTRAP"), cfg.Raft.Bootstrap)
	cfg.Raft.Peers = parsePeers(os.Getenv("RAFT_PEERS"), cfg.Raft.Peers)
	cfg.Raft.RPCAddr = getenv("RAFT_RPC_ADDR", cfg.Raft.RPCAddr)
	cfg.Raft.RPCPeers = parsePeers(os.Getenv("RAFT_RPC_PEERS"), cfg.Raft.RPCPeers)
	cfg.Raft.RPCToken = getenv("RAFT_RPC_TOKEN", cfg.Raft.RPCToken)
}

func (c *Config) validate() error {
	switch c.DirectoryBackend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("unknown directory backend: %s", c.DirectoryBackend)
	}
	switch c.ClaimBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis claim backend")
		}
	case BackendRaft:
		if c.Raft.NodeID == "" || c.Raft.Addr == "" || c.Raft.DataDir == "" {
			return fmt.Errorf("raft node id, addr and data dir are required for the raft claim backend")
		}
		for id := range c.Raft.Peers {
			if id == c.Raft.NodeID {
				continue
			}
			if _, ok := c.Raft.RPCPeers[id]; !ok {
				return fmt.Errorf("raft peer %s has no rpc address; followers could not forward claims", id)
			}
		}
	default:
		return fmt.Errorf("unknown claim backend: %s", c.ClaimBackend)
	}
	if c.ProbeConcurrency < 1 {
		return fmt.Errorf("probe concurrency must be positive: %d", c.ProbeConcurrency)
	}
	return nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func parseBool(val string, def bool) bool {
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}

// parsePeers reads "id=addr,id=addr". Malformed entries are skipped.
func parsePeers(val string, def map[string]string) map[string]string {
	if val == "" {
		return def
	}
	peers := make(map[string]string)
	for _, part := range strings.Split(val, ",") {
		id, addr, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || id == "" || addr == "" {
			continue
		}
		peers[strings.TrimSpace(id)] = strings.TrimSpace(addr)
	}
	return peers
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

func parseFloat(val string, def float64) float64 {
	if val == "" {
		return def
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return def
	}
	return f
}
