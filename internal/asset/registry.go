package asset

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a thread-safe lookup of known assets by identity and symbol.
type Registry struct {
	mu       sync.RWMutex
	byID     map[ID]*Asset
	bySymbol map[string][]*Asset
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[ID]*Asset),
		bySymbol: make(map[string][]*Asset),
	}
}

// Register adds an asset. Registering the same ID twice is a wiring bug.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: cannot register nil asset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID()]; exists {
		panic(fmt.Sprintf("asset: %s already registered", a.ID()))
	}
	r.byID[a.ID()] = a
	r.bySymbol[a.Symbol()] = append(r.bySymbol[a.Symbol()], a)
}

// Get retrieves an asset by ID.
func (r *Registry) Get(id ID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// Token retrieves an ERC20 asset by chain and address.
func (r *Registry) Token(chainID uint64, addr common.Address) (*Asset, bool) {
	return r.Get(TokenID(chainID, addr))
}

// BySymbol retrieves an asset by symbol on a specific chain.
func (r *Registry) BySymbol(symbol string, chainID uint64) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.bySymbol[symbol] {
		if a.ChainID() == chainID {
			return a, true
		}
	}
	return nil, false
}

// ResolveOrGeneric returns the registered asset for addr, or a generic
// 18-decimal placeholder when the token is unknown.
func (r *Registry) ResolveOrGeneric(chainID uint64, addr common.Address) *Asset {
	if a, ok := r.Token(chainID, addr); ok {
		return a
	}
	return New(TokenID(chainID, addr), addr.Hex()[:10], "", 18)
}
