package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"txsync/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(EnvMap{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "blockchain-data" {
		t.Errorf("expected default data dir, got %q", cfg.DataDir)
	}
	if cfg.StoreDriver != StoreDriverSQLite {
		t.Errorf("expected sqlite driver, got %q", cfg.StoreDriver)
	}
	if cfg.ExplorerTimeout != 30*time.Second {
		t.Errorf("unexpected explorer timeout %v", cfg.ExplorerTimeout)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Errorf("kafka should be disabled by default, got %v", cfg.KafkaBrokers)
	}
	keys := cfg.Networks.Keys()
	want := []string{"ethereum", "polygon", "bsc", "arbitrum", "optimism"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d networks, got %v", len(want), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("network %d: expected %s, got %s", i, want[i], keys[i])
		}
	}
}

func TestLoadAPIKeys(t *testing.T) {
	cfg, err := Load(EnvMap{
		"ETHERSCAN_API_KEY":   " key-eth ",
		"POLYGONSCAN_API_KEY": "",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.APIKey("etherscan"); got != "key-eth" {
		t.Errorf("expected trimmed etherscan key, got %q", got)
	}
	if got := cfg.APIKey("polygonscan"); got != "" {
		t.Errorf("expected empty polygonscan key, got %q", got)
	}
	keys := cfg.APIKeys()
	keys["etherscan"] = "mutated"
	if cfg.APIKey("etherscan") != "key-eth" {
		t.Error("APIKeys must return a copy")
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  EnvMap
	}{
		{name: "bad driver", env: EnvMap{"STORE_DRIVER": "postgres"}},
		{name: "mysql template without namespace", env: EnvMap{"STORE_DRIVER": "mysql", "MYSQL_DSN_TEMPLATE": "root@tcp(db)/txsync"}},
		{name: "bad timeout", env: EnvMap{"EXPLORER_TIMEOUT": "soon"}},
		{name: "bad page size", env: EnvMap{"EXPLORER_PAGE_SIZE": "-1"}},
		{name: "missing networks file", env: EnvMap{"NETWORKS_FILE": "/does/not/exist.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.env); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestOverlay(t *testing.T) {
	source := Overlay(EnvMap{"DATA_DIR": "env-dir", "LOG_LEVEL": "warn"}, EnvMap{"DATA_DIR": "flag-dir", "LOG_LEVEL": ""})
	cfg, err := Load(source)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "flag-dir" {
		t.Errorf("override should win, got %q", cfg.DataDir)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("empty override should fall through, got %q", cfg.LogLevel)
	}
}

func TestNetworksSelect(t *testing.T) {
	networks := DefaultNetworks()

	all, err := networks.Select("")
	if err != nil {
		t.Fatalf("select all: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("expected 5 networks, got %d", len(all))
	}

	one, err := networks.Select("Polygon")
	if err != nil {
		t.Fatalf("select polygon: %v", err)
	}
	if len(one) != 1 || one[0].ChainID != 137 {
		t.Errorf("unexpected selection %+v", one)
	}

	if _, err := networks.Select("solana"); !errors.Is(err, ErrUnknownNetwork) {
		t.Errorf("expected ErrUnknownNetwork, got %v", err)
	}
}

func TestNewNetworksValidation(t *testing.T) {
	if _, err := NewNetworks(nil); err == nil {
		t.Error("expected error for empty list")
	}
	networks := DefaultNetworks().All()
	dup := append(networks, networks[0])
	if _, err := NewNetworks(dup); err == nil {
		t.Error("expected error for duplicate key")
	}
	clash := networks[1]
	clash.Key = "polygon-2"
	if _, err := NewNetworks(append(DefaultNetworks().All(), clash)); err == nil {
		t.Error("expected error for shared namespace")
	}
	noChain := domain.Network{Key: "sepolia", APIURL: "https://api-sepolia.etherscan.io/api"}
	if _, err := NewNetworks([]domain.Network{noChain}); err == nil {
		t.Error("expected error for missing chain id")
	}
}

func TestLoadNetworksFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	content := `networks:
  - key: Sepolia
    name: Sepolia Testnet
    api_url: https://api-sepolia.etherscan.io/api
    explorer: etherscan
    chain_id: 11155111
    currency: ETH
  - key: base
    api_url: https://api.basescan.org/api
    explorer: basescan
    chain_id: 8453
    namespace: base-mainnet.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(EnvMap{"NETWORKS_FILE": path, "BASESCAN_API_KEY": "k"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sepolia, ok := cfg.Networks.Lookup("sepolia")
	if !ok {
		t.Fatal("sepolia not loaded")
	}
	if sepolia.ChainID != 11155111 || sepolia.Namespace != "sepolia.db" {
		t.Errorf("unexpected sepolia %+v", sepolia)
	}
	base, _ := cfg.Networks.Lookup("base")
	if base.Name != "base" || base.NamespaceName() != "base-mainnet" {
		t.Errorf("unexpected base %+v", base)
	}
	if cfg.APIKey("basescan") != "k" {
		t.Error("expected basescan key")
	}
	if _, ok := cfg.Networks.Lookup("ethereum"); ok {
		t.Error("networks file should replace the defaults")
	}
}
