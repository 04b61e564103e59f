package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"txsync/internal/domain"

	"github.com/spf13/viper"
)

var ErrUnknownNetwork = errors.New("unknown network")

// Networks is the ordered, read-only set of configured networks.
type Networks struct {
	list  []domain.Network
	byKey map[string]domain.Network
}

func NewNetworks(list []domain.Network) (Networks, error) {
	if len(list) == 0 {
		return Networks{}, errors.New("at least one network is required")
	}
	networks := Networks{
		list:  make([]domain.Network, 0, len(list)),
		byKey: make(map[string]domain.Network, len(list)),
	}
	namespaces := make(map[string]string, len(list))
	for _, network := range list {
		network.Key = strings.ToLower(strings.TrimSpace(network.Key))
		network.Explorer = strings.ToLower(strings.TrimSpace(network.Explorer))
		if network.Key == "" {
			return Networks{}, errors.New("network key is required")
		}
		if _, ok := networks.byKey[network.Key]; ok {
			return Networks{}, fmt.Errorf("duplicate network %q", network.Key)
		}
		if strings.TrimSpace(network.APIURL) == "" {
			return Networks{}, fmt.Errorf("network %q: api url is required", network.Key)
		}
		if network.ChainID == 0 {
			return Networks{}, fmt.Errorf("network %q: chain id is required", network.Key)
		}
		if network.Name == "" {
			network.Name = network.Key
		}
		if network.Explorer == "" {
			network.Explorer = network.Key
		}
		if network.Namespace == "" {
			network.Namespace = network.Key + ".db"
		}
		if owner, ok := namespaces[network.Namespace]; ok {
			return Networks{}, fmt.Errorf("network %q: namespace %q already used by %q", network.Key, network.Namespace, owner)
		}
		namespaces[network.Namespace] = network.Key
		networks.list = append(networks.list, network)
		networks.byKey[network.Key] = network
	}
	return networks, nil
}

// DefaultNetworks are the explorers supported out of the box.
func DefaultNetworks() Networks {
	networks, err := NewNetworks([]domain.Network{
		{Key: "ethereum", Name: "Ethereum Mainnet", APIURL: "https://api.etherscan.io/api", Explorer: "etherscan", ChainID: 1, Currency: "ETH", Namespace: "ethereum.db"},
		{Key: "polygon", Name: "Polygon Mainnet", APIURL: "https://api.polygonscan.com/api", Explorer: "polygonscan", ChainID: 137, Currency: "MATIC", Namespace: "polygon.db"},
		{Key: "bsc", Name: "Binance Smart Chain", APIURL: "https://api.bscscan.com/api", Explorer: "bscscan", ChainID: 56, Currency: "BNB", Namespace: "bsc.db"},
		{Key: "arbitrum", Name: "Arbitrum One", APIURL: "https://api.arbiscan.io/api", Explorer: "arbiscan", ChainID: 42161, Currency: "ETH", Namespace: "arbitrum.db"},
		{Key: "optimism", Name: "Optimism", APIURL: "https://api-optimistic.etherscan.io/api", Explorer: "optimistic", ChainID: 10, Currency: "ETH", Namespace: "optimism.db"},
	})
	if err != nil {
		panic(err)
	}
	return networks
}

func (n Networks) All() []domain.Network {
	return append([]domain.Network(nil), n.list...)
}

func (n Networks) Keys() []string {
	keys := make([]string, 0, len(n.list))
	for _, network := range n.list {
		keys = append(keys, network.Key)
	}
	return keys
}

func (n Networks) Lookup(key string) (domain.Network, bool) {
	network, ok := n.byKey[strings.ToLower(strings.TrimSpace(key))]
	return network, ok
}

// Select resolves the optional network selector. An empty selector means every
// configured network, in configuration order.
func (n Networks) Select(selector string) ([]domain.Network, error) {
	if strings.TrimSpace(selector) == "" {
		return n.All(), nil
	}
	network, ok := n.Lookup(selector)
	if !ok {
		return nil, fmt.Errorf("%w %q, supported: %s", ErrUnknownNetwork, selector, strings.Join(n.Keys(), ", "))
	}
	return []domain.Network{network}, nil
}

type networkEntry struct {
	Key       string `mapstructure:"key"`
	Name      string `mapstructure:"name"`
	APIURL    string `mapstructure:"api_url"`
	Explorer  string `mapstructure:"explorer"`
	ChainID   uint64 `mapstructure:"chain_id"`
	Currency  string `mapstructure:"currency"`
	Namespace string `mapstructure:"namespace"`
}

// LoadNetworksFile reads a networks list from a YAML, JSON or TOML file:
//
//	networks:
//	  - key: ethereum
//	    api_url: https://api.etherscan.io/api
//	    explorer: etherscan
//	    chain_id: 1
func LoadNetworksFile(path string) (Networks, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Networks{}, fmt.Errorf("read networks file: %w", err)
	}

	var entries []networkEntry
	if err := v.UnmarshalKey("networks", &entries); err != nil {
		return Networks{}, fmt.Errorf("decode networks file: %w", err)
	}
	if len(entries) == 0 {
		return Networks{}, fmt.Errorf("networks file %s lists no networks", path)
	}

	list := make([]domain.Network, 0, len(entries))
	for _, entry := range entries {
		list = append(list, domain.Network{
			Key:       entry.Key,
			Name:      entry.Name,
			APIURL:    entry.APIURL,
			Explorer:  entry.Explorer,
			ChainID:   entry.ChainID,
			Currency:  entry.Currency,
			Namespace: entry.Namespace,
		})
	}
	return NewNetworks(list)
}

// Explorers returns the distinct explorer families, sorted.
func (n Networks) Explorers() []string {
	seen := make(map[string]struct{}, len(n.list))
	var explorers []string
	for _, network := range n.list {
		if _, ok := seen[network.Explorer]; ok {
			continue
		}
		seen[network.Explorer] = struct{}{}
		explorers = append(explorers, network.Explorer)
	}
	sort.Strings(explorers)
	return explorers
}
