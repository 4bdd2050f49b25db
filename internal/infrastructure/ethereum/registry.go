package ethereum

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/config"
)

// Registry holds one client and fetcher per configured network
type Registry struct {
	clients  map[string]*Client
	fetchers map[string]*Fetcher
}

// DialNetworks connects to every network in the Ethereum config. A network
// that cannot be reached fails the whole dial.
func DialNetworks(ethCfg config.EthereumConfig, idxCfg config.IndexerConfig, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		clients:  make(map[string]*Client),
		fetchers: make(map[string]*Fetcher),
	}

	for network, url := range ethCfg.Networks() {
		client, err := NewClient(network, url, ethCfg, logger)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("network %s: %w", network, err)
		}
		r.clients[network] = client
		r.fetchers[network] = NewFetcher(client, ethCfg, idxCfg, logger)
	}

	return r, nil
}

// Client returns the client of a network
func (r *Registry) Client(network string) (*Client, bool) {
	c, ok := r.clients[network]
	return c, ok
}

// Fetchers returns every fetcher keyed by network
func (r *Registry) Fetchers() map[string]*Fetcher {
	return r.fetchers
}

// Networks returns the configured network names, sorted
func (r *Registry) Networks() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OnRetry installs a retry hook on every client
func (r *Registry) OnRetry(fn func(network, operation string)) {
	for _, c := range r.clients {
		c.OnRetry(fn)
	}
}

// Close closes every client
func (r *Registry) Close() {
	for _, c := range r.clients {
		c.Close()
	}
}
