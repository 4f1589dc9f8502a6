package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
)

// staticPrices is the last-resort USD price table.
var staticPrices = map[domain.Asset]decimal.Decimal{
	domain.AssetBTC:      decimal.RequireFromString("85966.43"),
	domain.AssetETH:      decimal.RequireFromString("2296.54"),
	domain.AssetBNB:      decimal.RequireFromString("596.78"),
	domain.AssetSOL:      decimal.RequireFromString("172.45"),
	domain.AssetXRP:      decimal.RequireFromString("0.52"),
	domain.AssetDOGE:     decimal.RequireFromString("0.12"),
	domain.AssetLTC:      decimal.RequireFromString("81.34"),
	domain.AssetTRX:      decimal.RequireFromString("0.104"),
	domain.AssetUSDTTron: decimal.RequireFromString("1.00"),
	domain.AssetUSDTBnb:  decimal.RequireFromString("1.00"),
}

// coinIDs maps assets to the price API's coin ids. Both USDT variants
// price as tether.
var coinIDs = map[domain.Asset]string{
	domain.AssetBTC:      "bitcoin",
	domain.AssetETH:      "ethereum",
	domain.AssetBNB:      "binancecoin",
	domain.AssetSOL:      "solana",
	domain.AssetXRP:      "ripple",
	domain.AssetDOGE:     "dogecoin",
	domain.AssetLTC:      "litecoin",
	domain.AssetTRX:      "tron",
	domain.AssetUSDTTron: "tether",
	domain.AssetUSDTBnb:  "tether",
}

// StaticPrice returns zero for an unsupported asset.
func StaticPrice(asset domain.Asset) decimal.Decimal {
	if p, ok := staticPrices[asset]; ok {
		return p
	}
	return decimal.Zero
}
