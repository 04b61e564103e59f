package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverSQLite = "sqlite"
	StoreDriverMySQL  = "mysql"
)

type Config struct {
	DataDir          string
	StoreDriver      string
	MySQLDSNTemplate string
	Networks         Networks
	ExplorerTimeout  time.Duration
	ExplorerPageSize int
	ExplorerCacheTTL time.Duration
	RedisAddr        string
	KafkaBrokers     []string
	KafkaTopicPrefix string
	OtelEndpoint     string
	PushgatewayURL   string
	LogLevel         string
	LogFormat        string
	LogFile          string
	LogMaxSizeMB     int
	LogMaxBackups    int

	apiKeys map[string]string
}

// APIKey returns the credential for an explorer family, or "" when none is
// configured. Missing keys are left for the explorer to reject.
func (c Config) APIKey(explorer string) string {
	return c.apiKeys[strings.ToLower(explorer)]
}

// APIKeys returns a copy of the credentials keyed by explorer family.
func (c Config) APIKeys() map[string]string {
	keys := make(map[string]string, len(c.apiKeys))
	for explorer, key := range c.apiKeys {
		keys[explorer] = key
	}
	return keys
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

type overlay struct {
	base      EnvSource
	overrides EnvMap
}

// Overlay layers non-empty overrides (typically command line flags) on top of base.
func Overlay(base EnvSource, overrides EnvMap) EnvSource {
	return overlay{base: base, overrides: overrides}
}

func (o overlay) Lookup(key string) (string, bool) {
	if value, ok := o.overrides[key]; ok && value != "" {
		return value, true
	}
	if o.base == nil {
		return "", false
	}
	return o.base.Lookup(key)
}

// APIKeyEnv is the variable holding the credential for an explorer family,
// e.g. ETHERSCAN_API_KEY.
func APIKeyEnv(explorer string) string {
	return strings.ToUpper(strings.TrimSpace(explorer)) + "_API_KEY"
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	dataDir := lookupString(source, "DATA_DIR", "blockchain-data")

	storeDriver := strings.ToLower(lookupString(source, "STORE_DRIVER", StoreDriverSQLite))
	mysqlDSN := lookupString(source, "MYSQL_DSN_TEMPLATE", "root:@tcp(127.0.0.1:3306)/txsync_{namespace}?parseTime=true")
	switch storeDriver {
	case StoreDriverSQLite:
	case StoreDriverMySQL:
		if !strings.Contains(mysqlDSN, "{namespace}") {
			return Config{}, errors.New("MYSQL_DSN_TEMPLATE must contain {namespace}")
		}
	default:
		return Config{}, fmt.Errorf("invalid STORE_DRIVER: %q", storeDriver)
	}

	networks := DefaultNetworks()
	if path := lookupString(source, "NETWORKS_FILE", ""); path != "" {
		loaded, err := LoadNetworksFile(path)
		if err != nil {
			return Config{}, err
		}
		networks = loaded
	}

	apiKeys := make(map[string]string)
	for _, explorer := range networks.Explorers() {
		if key, ok := source.Lookup(APIKeyEnv(explorer)); ok && strings.TrimSpace(key) != "" {
			apiKeys[explorer] = strings.TrimSpace(key)
		}
	}

	explorerTimeout, err := parseDurationEnv(source, "EXPLORER_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := parseDurationEnv(source, "EXPLORER_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	pageSize, err := parseUintEnv(source, "EXPLORER_PAGE_SIZE", 0)
	if err != nil {
		return Config{}, err
	}
	logMaxSize, err := parseUintEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseUintEnv(source, "LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	return Config{
		DataDir:          dataDir,
		StoreDriver:      storeDriver,
		MySQLDSNTemplate: mysqlDSN,
		Networks:         networks,
		ExplorerTimeout:  explorerTimeout,
		ExplorerPageSize: int(pageSize),
		ExplorerCacheTTL: cacheTTL,
		RedisAddr:        lookupString(source, "REDIS_ADDR", ""),
		KafkaBrokers:     parseList(source, "KAFKA_BROKERS"),
		KafkaTopicPrefix: lookupString(source, "KAFKA_TOPIC_PREFIX", "txsync-transactions"),
		OtelEndpoint:     lookupString(source, "OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		PushgatewayURL:   lookupString(source, "PUSHGATEWAY_URL", ""),
		LogLevel:         lookupString(source, "LOG_LEVEL", "info"),
		LogFormat:        lookupString(source, "LOG_FORMAT", "text"),
		LogFile:          lookupString(source, "LOG_FILE", ""),
		LogMaxSizeMB:     int(logMaxSize),
		LogMaxBackups:    int(logMaxBackups),
		apiKeys:          apiKeys,
	}, nil
}

func lookupString(source EnvSource, key, defaultValue string) string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	return strings.TrimSpace(raw)
}

func parseUintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration", key)
	}
	return duration, nil
}

func parseList(source EnvSource, key string) []string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	return values
}
