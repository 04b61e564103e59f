package domain

import (
	"path/filepath"
	"strings"
)

// Network describes one explorer-backed chain. Values are built once from
// configuration and never mutated.
type Network struct {
	Key       string
	Name      string
	APIURL    string
	Explorer  string
	ChainID   uint64
	Currency  string
	Namespace string
}

// NamespaceName is the namespace without any file extension, for engines that
// address namespaces as databases rather than files.
func (n Network) NamespaceName() string {
	name := strings.TrimSuffix(n.Namespace, filepath.Ext(n.Namespace))
	if name == "" {
		return n.Key
	}
	return name
}
