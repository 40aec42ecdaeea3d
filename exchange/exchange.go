package exchange

// TimeUnit MILLISECOND, MICROSECOND
type TimeUnit string

const (
	TimeUnitMillisecond      TimeUnit = "MILLISECOND"
	TimeUnitMillisecondLower TimeUnit = "millisecond"
	TimeUnitMicrosecond      TimeUnit = "MICROSECOND"
	TimeUnitMicrosecondLower TimeUnit = "microsecond"
)

// Valid reports whether t is one of the time units accepted by the X-MBX-TIME-UNIT header.
func (t TimeUnit) Valid() bool {
	switch t {
	case TimeUnitMillisecond, TimeUnitMillisecondLower, TimeUnitMicrosecond, TimeUnitMicrosecondLower:
		return true
	}
	return false
}

// Global enums
const (
	BinanceExchange = "BINANCE"

	// 签名相关的请求参数
	TimestampKey  = "timestamp"
	SignatureKey  = "signature"
	RecvWindowKey = "recvWindow"
	APIKeyParam   = "apiKey"

	// HTTP 头
	APIKeyHeader   = "X-MBX-APIKEY"
	TimeUnitHeader = "X-MBX-TIME-UNIT"
)

// WebsocketMode single 只建立一个连接，pool 建立固定数量的连接
type WebsocketMode string

const (
	ModeSingle WebsocketMode = "single"
	ModePool   WebsocketMode = "pool"
)
