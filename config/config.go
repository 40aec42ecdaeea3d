package config

import (
	"fmt"
	"time"

	kconfig "github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/redis/go-redis/v9"

	"github.com/go-gotop/bnconnector/apimanager"
	"github.com/go-gotop/bnconnector/broker/kafka"
	"github.com/go-gotop/bnconnector/exchange"
	"github.com/go-gotop/bnconnector/limiter"
	"github.com/go-gotop/bnconnector/limiter/bnlimiter"
	"github.com/go-gotop/bnconnector/limiter/redislimiter"
	"github.com/go-gotop/bnconnector/requests/bnhttp"
	"github.com/go-gotop/bnconnector/streammanager"
	"github.com/go-gotop/bnconnector/utils"
	"github.com/go-gotop/bnconnector/wsmanager/manager"
)

// Bootstrap 配置文件的根结构，时间均以毫秒为单位
type Bootstrap struct {
	Log              Log              `json:"log"`
	RestAPI          RestAPI          `json:"rest_api"`
	WebsocketAPI     WebsocketAPI     `json:"websocket_api"`
	WebsocketStreams WebsocketStreams `json:"websocket_streams"`
	Limiter          Limiter          `json:"limiter"`
	Kafka            Kafka            `json:"kafka"`
}

type Redis struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// NewClient returns nil when no address is configured.
func (r Redis) NewClient() *redis.Client {
	if r.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
	})
}

type Log struct {
	Env     string `json:"env"`
	Service string `json:"service"`
	Level   string `json:"level"`
	Redis   Redis  `json:"redis"`
}

type Credentials struct {
	APIKey               string `json:"api_key"`
	APISecret            string `json:"api_secret"`
	PrivateKey           string `json:"private_key"`
	PrivateKeyPassphrase string `json:"private_key_passphrase"`
}

// Decrypt replaces "enc:" values with their plaintext.
func (c *Credentials) Decrypt(key *[32]byte) error {
	for _, f := range []*string{&c.APIKey, &c.APISecret, &c.PrivateKey, &c.PrivateKeyPassphrase} {
		v, err := utils.DecryptValue(*f, key)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}

func (c *Credentials) encrypted() bool {
	return utils.IsEncrypted(c.APIKey) || utils.IsEncrypted(c.APISecret) ||
		utils.IsEncrypted(c.PrivateKey) || utils.IsEncrypted(c.PrivateKeyPassphrase)
}

type RestAPI struct {
	Credentials
	BasePath    string `json:"base_path"`
	Timeout     int64  `json:"timeout"`
	Retries     *int   `json:"retries"`
	Backoff     int64  `json:"backoff"`
	KeepAlive   *bool  `json:"keep_alive"`
	Compression *bool  `json:"compression"`
	TimeUnit    string `json:"time_unit"`
	Proxy       string `json:"proxy"`
}

func (c *RestAPI) Options() []bnhttp.Option {
	var opts []bnhttp.Option
	if c.BasePath != "" {
		opts = append(opts, bnhttp.BaseURL(c.BasePath))
	}
	if c.APIKey != "" {
		opts = append(opts, bnhttp.APIKey(c.APIKey))
	}
	if c.APISecret != "" {
		opts = append(opts, bnhttp.APISecret(c.APISecret))
	}
	if c.PrivateKey != "" {
		opts = append(opts, bnhttp.PrivateKey(c.PrivateKey), bnhttp.PrivateKeyPassphrase(c.PrivateKeyPassphrase))
	}
	if c.Timeout > 0 {
		opts = append(opts, bnhttp.Timeout(millis(c.Timeout)))
	}
	if c.Retries != nil {
		opts = append(opts, bnhttp.Retries(*c.Retries))
	}
	if c.Backoff > 0 {
		opts = append(opts, bnhttp.Backoff(millis(c.Backoff)))
	}
	if c.KeepAlive != nil {
		opts = append(opts, bnhttp.KeepAlive(*c.KeepAlive))
	}
	if c.Compression != nil {
		opts = append(opts, bnhttp.Compression(*c.Compression))
	}
	if c.Proxy != "" {
		opts = append(opts, bnhttp.ProxyURL(c.Proxy))
	}
	if c.TimeUnit != "" {
		opts = append(opts, bnhttp.TimeUnit(exchange.TimeUnit(c.TimeUnit)))
	}
	return opts
}

// Pool 连接池配置
type Pool struct {
	Mode           string `json:"mode"`
	PoolSize       int    `json:"pool_size"`
	ReconnectDelay int64  `json:"reconnect_delay"`
	Compression    bool   `json:"compression"`
	Proxy          string `json:"proxy"`
}

func (p *Pool) Options() []manager.Option {
	var opts []manager.Option
	if p.Mode != "" {
		opts = append(opts, manager.WithMode(exchange.WebsocketMode(p.Mode)))
	}
	if p.PoolSize > 0 {
		opts = append(opts, manager.WithPoolSize(p.PoolSize))
	}
	if p.ReconnectDelay > 0 {
		opts = append(opts, manager.WithReconnectDelay(millis(p.ReconnectDelay)))
	}
	if p.Compression {
		opts = append(opts, manager.WithCompression(true))
	}
	if p.Proxy != "" {
		opts = append(opts, manager.WithProxyURL(p.Proxy))
	}
	return opts
}

type WebsocketAPI struct {
	Credentials
	Pool
	WsURL    string `json:"ws_url"`
	Timeout  int64  `json:"timeout"`
	TimeUnit string `json:"time_unit"`
}

func (c *WebsocketAPI) Options() []apimanager.Option {
	opts := []apimanager.Option{apimanager.WithManagerOptions(c.Pool.Options()...)}
	if c.WsURL != "" {
		opts = append(opts, apimanager.WithWsURL(c.WsURL))
	}
	if c.Timeout > 0 {
		opts = append(opts, apimanager.WithTimeout(millis(c.Timeout)))
	}
	if c.TimeUnit != "" {
		opts = append(opts, apimanager.WithTimeUnit(exchange.TimeUnit(c.TimeUnit)))
	}
	if c.APIKey != "" {
		opts = append(opts, apimanager.APIKey(c.APIKey))
	}
	if c.APISecret != "" {
		opts = append(opts, apimanager.APISecret(c.APISecret))
	}
	if c.PrivateKey != "" {
		opts = append(opts, apimanager.PrivateKey(c.PrivateKey), apimanager.PrivateKeyPassphrase(c.PrivateKeyPassphrase))
	}
	return opts
}

type WebsocketStreams struct {
	Pool
	WsURL    string `json:"ws_url"`
	Timeout  int64  `json:"timeout"`
	TimeUnit string `json:"time_unit"`
}

func (c *WebsocketStreams) Options() []streammanager.Option {
	opts := []streammanager.Option{streammanager.WithManagerOptions(c.Pool.Options()...)}
	if c.WsURL != "" {
		opts = append(opts, streammanager.WithWsURL(c.WsURL))
	}
	if c.Timeout > 0 {
		opts = append(opts, streammanager.WithTimeout(millis(c.Timeout)))
	}
	if c.TimeUnit != "" {
		opts = append(opts, streammanager.WithTimeUnit(exchange.TimeUnit(c.TimeUnit)))
	}
	return opts
}

// Limiter type is "memory" or "redis"; empty disables local limiting.
type Limiter struct {
	Type              string  `json:"type"`
	MaxWeight         int     `json:"max_weight"`
	WeightWindow      int64   `json:"weight_window"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
	KeyPrefix         string  `json:"key_prefix"`
	Redis             Redis   `json:"redis"`
}

func (c *Limiter) Options() []limiter.Option {
	var opts []limiter.Option
	if c.MaxWeight > 0 {
		opts = append(opts, limiter.WithMaxWeight(c.MaxWeight))
	}
	if c.WeightWindow > 0 {
		opts = append(opts, limiter.WithWeightWindow(millis(c.WeightWindow)))
	}
	if c.RequestsPerSecond > 0 {
		opts = append(opts, limiter.WithRequestsPerSecond(c.RequestsPerSecond, c.Burst))
	}
	if c.KeyPrefix != "" {
		opts = append(opts, limiter.WithKeyPrefix(c.KeyPrefix))
	}
	return opts
}

// New builds the configured limiter, nil when disabled.
func (c *Limiter) New() limiter.Limiter {
	switch c.Type {
	case "memory":
		return bnlimiter.NewBinanceLimiter(c.Options()...)
	case "redis":
		if rdb := c.Redis.NewClient(); rdb != nil {
			return redislimiter.NewRedisLimiter(rdb, c.Options()...)
		}
	}
	return nil
}

type Kafka struct {
	Addrs        []string `json:"addrs"`
	Topic        string   `json:"topic"`
	WriteTimeout int64    `json:"write_timeout"`
	Async        bool     `json:"async"`
}

func (c *Kafka) Enabled() bool {
	return len(c.Addrs) > 0
}

func (c *Kafka) Options() []kafka.Option {
	opts := []kafka.Option{kafka.WithAddrs(c.Addrs...), kafka.WithAsync(c.Async)}
	if c.Topic != "" {
		opts = append(opts, kafka.WithTopic(c.Topic))
	}
	if c.WriteTimeout > 0 {
		opts = append(opts, kafka.WithWriteTimeout(millis(c.WriteTimeout)))
	}
	return opts
}

// Load reads a yaml or json file, the format follows the extension.
func Load(path string) (*Bootstrap, error) {
	c := kconfig.New(kconfig.WithSource(file.NewSource(path)))
	defer c.Close()

	if err := c.Load(); err != nil {
		return nil, err
	}
	var bc Bootstrap
	if err := c.Scan(&bc); err != nil {
		return nil, err
	}
	if err := bc.decryptCredentials(); err != nil {
		return nil, err
	}
	return &bc, nil
}

// decryptCredentials needs ENCRYPTION_KEY only when a credential is encrypted.
func (bc *Bootstrap) decryptCredentials() error {
	creds := []*Credentials{&bc.RestAPI.Credentials, &bc.WebsocketAPI.Credentials}
	var key *[32]byte
	for _, c := range creds {
		if !c.encrypted() {
			continue
		}
		if key == nil {
			k, err := utils.LoadEncryptionKey()
			if err != nil {
				return err
			}
			key = k
		}
		if err := c.Decrypt(key); err != nil {
			return fmt.Errorf("decrypt credentials: %w", err)
		}
	}
	return nil
}

func millis(n int64) time.Duration {
	return time.Duration(n) * time.Millisecond
}
