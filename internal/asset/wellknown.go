package asset

import "github.com/ethereum/go-ethereum/common"

// Chain IDs.
const (
	ChainIDEthereum = 1
	ChainIDSepolia  = 11155111
	ChainIDPolygon  = 137
	ChainIDArbitrum = 42161
	ChainIDBase     = 8453
)

// Well-known token addresses on Ethereum mainnet.
var (
	AddrWETH = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	AddrUSDC = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	AddrUSDT = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	AddrDAI  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	AddrWBTC = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
)

// Pre-created instances for the mainnet token set the bot trades.
var (
	ETH  = New(NativeID(ChainIDEthereum), "ETH", "Ether", 18)
	WETH = New(TokenID(ChainIDEthereum, AddrWETH), "WETH", "Wrapped Ether", 18)
	USDC = New(TokenID(ChainIDEthereum, AddrUSDC), "USDC", "USD Coin", 6)
	USDT = New(TokenID(ChainIDEthereum, AddrUSDT), "USDT", "Tether USD", 6)
	DAI  = New(TokenID(ChainIDEthereum, AddrDAI), "DAI", "Dai Stablecoin", 18)
	WBTC = New(TokenID(ChainIDEthereum, AddrWBTC), "WBTC", "Wrapped Bitcoin", 8)
)

// DefaultRegistry returns a registry pre-populated with the mainnet set.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ETH)
	r.Register(WETH)
	r.Register(USDC)
	r.Register(USDT)
	r.Register(DAI)
	r.Register(WBTC)
	return r
}
