package domain

type Asset string

const (
	AssetBTC      Asset = "btc"
	AssetETH      Asset = "eth"
	AssetBNB      Asset = "bnb"
	AssetSOL      Asset = "sol"
	AssetXRP      Asset = "xrp"
	AssetDOGE     Asset = "doge"
	AssetLTC      Asset = "ltc"
	AssetTRX      Asset = "trx"
	AssetUSDTTron Asset = "usdtTron"
	AssetUSDTBnb  Asset = "usdtBnb"
)

// Assets lists every supported asset in display order.
var Assets = []Asset{
	AssetBTC, AssetETH, AssetBNB, AssetSOL, AssetXRP,
	AssetDOGE, AssetLTC, AssetTRX, AssetUSDTTron, AssetUSDTBnb,
}

var assetNames = map[Asset]string{
	AssetBTC:      "Bitcoin",
	AssetETH:      "Ethereum",
	AssetBNB:      "BNB",
	AssetSOL:      "Solana",
	AssetXRP:      "XRP",
	AssetDOGE:     "Dogecoin",
	AssetLTC:      "Litecoin",
	AssetTRX:      "TRON",
	AssetUSDTTron: "Tether (TRON)",
	AssetUSDTBnb:  "Tether (BEP-20)",
}

func (a Asset) IsValid() bool {
	_, ok := assetNames[a]
	return ok
}

func (a Asset) DisplayName() string {
	if name, ok := assetNames[a]; ok {
		return name
	}
	return string(a)
}
