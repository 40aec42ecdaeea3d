package center

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/go-gotop/bnconnector/config"
	"github.com/go-gotop/bnconnector/utils"
)

const (
	EnvProduction = "PRD"

	logKeyPrefix = "log:"
	logTTL       = 10 * 24 * time.Hour
)

type LogEntry struct {
	Service   string `json:"service"`
	Level     string `json:"level"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

// RedisHandler 是一个log.Logger，将日志以 JSON 存储到Redis，10 天过期
type RedisHandler struct {
	client      *redis.Client
	serviceName string // 日志json格式中的服务名 用做检索
}

type MultiLogger struct {
	loggers []log.Logger
}

func newMultiLogger(loggers ...log.Logger) *MultiLogger {
	return &MultiLogger{
		loggers: loggers,
	}
}

// Log 写入所有 logger，返回第一个错误
func (m *MultiLogger) Log(level log.Level, keyvals ...interface{}) error {
	var first error
	for _, logger := range m.loggers {
		if err := logger.Log(level, keyvals...); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (h *RedisHandler) Log(level log.Level, keyvals ...interface{}) error {
	var b strings.Builder
	b.WriteString("level=")
	b.WriteString(level.String())
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 < len(keyvals) {
			fmt.Fprintf(&b, " %s=%v", keyvals[i], keyvals[i+1])
		} else {
			fmt.Fprintf(&b, " %s=MISSING_VALUE", keyvals[i])
		}
	}
	nano := time.Now().UnixNano()
	entry := &LogEntry{
		Service:   h.serviceName,
		Level:     level.String(),
		Timestamp: nano,
		Message:   b.String(),
	}
	data, err := utils.Json.Marshal(entry)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%s:%d", logKeyPrefix, h.serviceName, nano)
	return h.client.Set(context.Background(), key, data, logTTL).Err()
}

func newStdoutHandler(w io.Writer, svcName string) log.Logger {
	return log.With(log.NewStdLogger(w),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service", svcName,
	)
}

func newRedisHandler(client *redis.Client, name string) *RedisHandler {
	return &RedisHandler{
		client:      client,
		serviceName: name,
	}
}

// NewLogger stdout 日志，生产环境另写一份到 redis；低于 cfg.Level 的日志被过滤
func NewLogger(cfg *config.Log) log.Logger {
	return newLogger(os.Stdout, cfg, cfg.Redis.NewClient())
}

func newLogger(w io.Writer, cfg *config.Log, rdb *redis.Client) log.Logger {
	loggers := []log.Logger{newStdoutHandler(w, cfg.Service)}
	if cfg.Env == EnvProduction && rdb != nil {
		loggers = append(loggers, newRedisHandler(rdb, cfg.Service))
	}
	level := log.LevelInfo
	if cfg.Level != "" {
		level = log.ParseLevel(cfg.Level)
	}
	return log.NewFilter(newMultiLogger(loggers...), log.FilterLevel(level))
}
