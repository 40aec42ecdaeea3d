package exchange

// Spot
const (
	SpotRestAPIProdURL      = "https://api.binance.com"
	SpotRestAPITestnetURL   = "https://testnet.binance.vision"
	SpotWsAPIProdURL        = "wss://ws-api.binance.com:443/ws-api/v3"
	SpotWsAPITestnetURL     = "wss://ws-api.testnet.binance.vision/ws-api/v3"
	SpotWsStreamsProdURL    = "wss://stream.binance.com:9443"
	SpotWsStreamsTestnetURL = "wss://stream.testnet.binance.vision"
	SpotRestAPIMarketURL    = "https://data-api.binance.vision"
	SpotWsStreamsMarketURL  = "wss://data-stream.binance.vision"
)

// Derivatives Trading (COIN-M Futures)
const (
	CoinFuturesRestAPIProdURL      = "https://dapi.binance.com"
	CoinFuturesRestAPITestnetURL   = "https://testnet.binancefuture.com"
	CoinFuturesWsAPIProdURL        = "wss://ws-dapi.binance.com/ws-dapi/v1"
	CoinFuturesWsAPITestnetURL     = "wss://testnet.binancefuture.com/ws-dapi/v1"
	CoinFuturesWsStreamsProdURL    = "wss://dstream.binance.com"
	CoinFuturesWsStreamsTestnetURL = "wss://dstream.binancefuture.com"
)

// Derivatives Trading (USDS Futures)
const (
	UsdsFuturesRestAPIProdURL      = "https://fapi.binance.com"
	UsdsFuturesRestAPITestnetURL   = "https://testnet.binancefuture.com"
	UsdsFuturesWsAPIProdURL        = "wss://ws-fapi.binance.com/ws-fapi/v1"
	UsdsFuturesWsAPITestnetURL     = "wss://testnet.binancefuture.com/ws-fapi/v1"
	UsdsFuturesWsStreamsProdURL    = "wss://fstream.binance.com"
	UsdsFuturesWsStreamsTestnetURL = "wss://stream.binancefuture.com"
)

// Derivatives Trading (Options, Portfolio Margin)
const (
	OptionsRestAPIProdURL               = "https://eapi.binance.com"
	OptionsWsStreamsProdURL             = "wss://nbstream.binance.com/eoptions"
	PortfolioMarginRestAPIProdURL       = "https://papi.binance.com"
	PortfolioMarginRestAPITestnetURL    = "https://testnet.binancefuture.com"
	PortfolioMarginProRestAPIProdURL    = "https://fapi.binance.com"
	PortfolioMarginProRestAPITestnetURL = "https://testnet.binancefuture.com"
)

// The remaining SAPI products (algo, auto invest, c2c, convert, copy trading, crypto loan,
// dual investment, fiat, gift card, margin, mining, nft, pay, rebate, simple earn, staking,
// sub account, vip loan, wallet) share the spot hosts.
const (
	SapiRestAPIProdURL    = SpotRestAPIProdURL
	SapiRestAPITestnetURL = SpotRestAPITestnetURL
)
